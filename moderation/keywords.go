package moderation

// DescriptorKeywords maps a free-text descriptor to the lowercase keywords that
// mark a chat line as matching it.
var DescriptorKeywords = map[string][]string{
	"toxic": {"idiot", "stupid", "hate", "kill", "dumb", "trash", "noob", "loser", "shut up", "annoying", "toxic", "rude", "mean", "sucks", "bad", "worst", "report", "ban"},
	"spam":  {"buy followers", "free", "promo", "visit", "http", "www", "spam", "emote", "caps", "repeated"},
	"rude":  {"shut up", "idiot", "stupid", "dumb", "annoying", "rude", "mean", "trash", "loser", "bad", "worst"},
}

// durationTiers are checked in order; the first tier with a matching keyword wins.
var durationTiers = []struct {
	keywords []string
	seconds  int
}{
	{[]string{"spam", "caps", "emote"}, 300},
	{[]string{"toxic", "rude", "mean"}, 1800},
	{[]string{"severe", "serious"}, 3600},
}

// DefaultTimeoutSeconds applies when a reason matches no tier.
const DefaultTimeoutSeconds = 600

var stopwords = toSet(
	"the", "and", "that", "have", "for", "not", "with", "you", "this", "but",
	"his", "from", "they", "say", "her", "she", "will", "one", "all", "would",
	"there", "their", "what", "so", "up", "out", "if", "about", "who", "get",
	"which", "go", "me", "when", "make", "can", "like", "time", "no", "just",
	"him", "know", "take", "people", "into", "year", "your", "good", "some", "could",
	"them", "see", "other", "than", "then", "now", "look", "only", "come", "its",
	"over", "think", "also", "back", "after", "use", "two", "how", "our", "work",
	"first", "well", "way", "even", "new", "want", "because", "any", "these", "give",
	"day", "most", "us",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
