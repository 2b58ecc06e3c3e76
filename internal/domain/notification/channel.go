package notification

// Channel is a delivery medium. The set is closed so dispatch code can
// handle every channel exhaustively.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)
