// Package domain holds the model types and collaborator interfaces shared by
// all components: stream signatures, playback events, the persisted settings
// contract, and the gateways to the media-center host. It has no dependencies
// on any other internal package.
package domain
