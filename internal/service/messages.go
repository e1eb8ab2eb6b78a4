package service

// 用户可见文本
const (
	MsgConnectFirst       = "No vehicle available. Please connect one with /connect."
	MsgNoVehiclesYet      = "You don't have any vehicles connected yet.\n\nUse /connect to link your car!"
	MsgDataNotAvailable   = "Data not available for this vehicle."
	MsgStatusUnavailable  = "Unable to retrieve vehicle status."
	MsgDataUnavailable    = "Unable to retrieve vehicle data."
	MsgLocationDisabled   = "📍 Location data is not currently available for this vehicle."
	MsgTirePressureOff    = "🚗 Tire pressure data is not currently available for this vehicle."
	MsgHelpHint           = "Use /help to see all available commands."
	MsgLLMNotConfigured   = "Natural language processing is not configured. Please use the available commands (/help for list)."
	MsgLLMTrouble         = "I'm having trouble processing your request. Please try again."
	MsgAccountSetupFailed = "Sorry, there was an error setting up your account. Please try again later."
	MsgLiveUnavailable    = "Live updates are not available right now."
)

// MsgWelcome /start
const MsgWelcome = `Welcome to Smart Car Assistant! 🚗

I can help you manage your connected vehicles. Here's what I can do:

/connect - Connect a new vehicle
/vehicles - List your connected vehicles
/status - Get your vehicle's current status
/help - Show available commands

You can also just send me a message in plain English, and I'll try to help!

To get started, use /connect to link your car.`

// MsgHelp /help (Markdown)
const MsgHelp = `*Smart Car Assistant Commands*

/start - Welcome message and introduction
/connect - Connect a new vehicle via Smartcar
/vehicles - List all your connected vehicles
/status - Get current vehicle status (fuel, battery, odometer)
/live - Get a token for live connection updates
/help - Show this help message

*Natural Language*
You can also just type messages like:
- "What's my fuel level?"
- "Lock my car"
- "What's the battery status?"

I'll do my best to understand and help!

*Need Help?*
If you're having trouble, try disconnecting and reconnecting your vehicle with /connect.`

// ConnectMessage /connect 回复
func ConnectMessage(authURL string) string {
	return "To connect your vehicle, please click the link below:\n\n" +
		authURL +
		"\n\nThis will take you to Smartcar where you can securely log in with your car's account (Tesla, Ford, etc.) and grant access." +
		"\n\nAfter connecting, you'll be redirected back and your vehicle will be available!"
}

// LiveTokenMessage /live 回复
func LiveTokenMessage(token string) string {
	return "Your live updates token:\n\n" + token +
		"\n\nSend {\"type\":\"subscribe\",\"token\":\"<token>\"} on the /ws websocket to receive your vehicle events. Keep it private."
}
