package constants

// Reconnect and pairing defaults
const (
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectDelaySec    = 5
	DefaultMaxPairingAttempts   = 10
	DefaultPairingRetryDelaySec = 1
)

// Credential store defaults
const (
	DefaultCredsDirName = "wa_creds"
	DefaultCredsSuffix  = "_creds"
)

// Archive defaults
const (
	DefaultArchiveRetryAttempts = 3
	DefaultRetryBackoffMs       = 1000
	DefaultMaxBackoffMs         = 60000
)

// Default timeout values
const (
	DefaultSendTimeoutSec         = 30
	DefaultRecipientCheckSec      = 10
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultProfileFetchTimeoutSec = 5
)

// Admin server defaults
const (
	DefaultServerPort = 8082
)

// Sticker defaults
const (
	DefaultStickerPack   = "whatsauto"
	DefaultStickerAuthor = "whatsauto"
)
