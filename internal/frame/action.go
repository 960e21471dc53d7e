package frame

// Action is the message kind tag carried by every frame.
type Action string

const (
	ActionPing           Action = "ping"
	ActionPong           Action = "pong"
	ActionError          Action = "error"
	ActionToken          Action = "token"
	ActionMultipleAction Action = "multipleAction"

	ActionProfile           Action = "profile"
	ActionAssets            Action = "assets"
	ActionCandlesTimeframes Action = "getCandlesTimeframes"
	ActionCurrency          Action = "getCurrency"
	ActionCountries         Action = "getCountries"
	ActionUserGroup         Action = "userGroup"
	ActionUserDepositSum    Action = "userDepositSum"
	ActionUserAchievements  Action = "userAchievements"
	ActionExpertSubscribe   Action = "expertSubscribe"
	ActionOneTimeToken      Action = "getOneTimeToken"

	ActionCandles        Action = "candles"
	ActionHistoryCandles Action = "assetHistoryCandles"

	ActionBuyOption            Action = "buyOption"
	ActionBuySuccessful        Action = "buySuccessful"
	ActionOpenTradeSuccessful  Action = "openTradeSuccessful"
	ActionCloseTradeSuccessful Action = "closeTradeSuccessful"
	ActionTradesStatus         Action = "tradesStatus"
	ActionOptStatus            Action = "optStatus"
	ActionOptionFinished       Action = "optionFinished"

	ActionTradersChoice   Action = "tradersChoice"
	ActionExpertOption    Action = "expertOption"
	ActionOpenTrades      Action = "openTrades"
	ActionTradeHistory    Action = "tradeHistory"
	ActionOpenOptionsStat Action = "openOptionsStat"
	ActionClearClosed     Action = "clearClosedOptions"

	ActionSetContext       Action = "setContext"
	ActionSetTimeZone      Action = "setTimeZone"
	ActionEnvironment      Action = "environment"
	ActionSubscribeCandles Action = "subscribeCandles"
	ActionUnsubscribe      Action = "unsubscribeCandles"
	ActionDefaultSubscribe Action = "defaultSubscribeCandles"
	ActionSubscribeChunked Action = "subscribeChunked"
	ActionSubscribeTimed   Action = "subscribeTimed"
)

// protocolVersion is the "v" field the venue expects on heartbeat frames.
const protocolVersion = 23
