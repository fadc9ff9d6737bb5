package tools

var defaultRegistry = NewRegistry(
	Spec{
		Name:        SendMessage,
		Description: "Send message to the Twitch Chat",
		Args: []ArgSpec{
			{Name: "message", Type: TypeString, Required: true, Description: "The message to send"},
		},
	},
	Spec{
		Name:        CreatePoll,
		Description: "Create a Twitch Poll",
		Args: []ArgSpec{
			{Name: "title", Type: TypeString, Required: true, Description: "Poll title"},
			{Name: "choices", Type: TypeString, Required: true, Description: "Comma-separated choices", Hint: "comma-separated"},
			{Name: "duration", Type: TypeInteger, Required: true, Description: "Duration in seconds", Hint: "seconds"},
		},
	},
	Spec{
		Name:        CreatePrediction,
		Description: "Create a Twitch Prediction",
		Args: []ArgSpec{
			{Name: "title", Type: TypeString, Required: true, Description: "Prediction title"},
			{Name: "outcomes", Type: TypeString, Required: true, Description: "Comma-separated outcomes", Hint: "comma-separated"},
			{Name: "duration", Type: TypeInteger, Required: true, Description: "Duration in seconds", Hint: "seconds"},
		},
	},
	Spec{Name: CreateClip, Description: "Create a Twitch clip of the current stream"},
	Spec{Name: AnalyzeChat, Description: "Analyze recent Twitch chat messages and provide a summary"},
	Spec{Name: RecentChatLog, Description: "Get the last 20 chat messages for moderation context"},
	Spec{
		Name:        TimeoutUser,
		Description: "Timeout a user in the Twitch chat",
		Args: []ArgSpec{
			{Name: "usernameOrDescriptor", Type: TypeString, Required: true, Description: "Username or descriptor (e.g. 'toxic', 'spammer', or a username)"},
			{Name: "reason", Type: TypeString, Description: "Reason for timeout"},
			{Name: "duration", Type: TypeInteger, Description: "Timeout length in seconds; derived from the reason when omitted", Hint: "seconds"},
		},
	},
	Spec{
		Name:        BanUser,
		Description: "Ban a user from the Twitch chat",
		Args: []ArgSpec{
			{Name: "usernameOrDescriptor", Type: TypeString, Required: true, Description: "Username or descriptor (e.g. 'toxic', 'spammer', or a username)"},
			{Name: "reason", Type: TypeString, Description: "Reason for ban"},
		},
	},
	Spec{
		Name:        UpdateTitle,
		Description: "Update the stream title",
		Args: []ArgSpec{
			{Name: "title", Type: TypeString, Required: true, Description: "New stream title"},
		},
	},
	Spec{
		Name:        UpdateCategory,
		Description: "Update the game category of the stream",
		Args: []ArgSpec{
			{Name: "category", Type: TypeString, Required: true, Description: "Game category name"},
		},
	},
)

// Default returns the built-in catalog of ten tools.
func Default() *Registry { return defaultRegistry }
