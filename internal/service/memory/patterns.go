package memory

import "regexp"

// Priority levels assigned by content classification.
const (
	PriorityCritical = 4.0
	PriorityHigh     = 3.0
	PriorityMedium   = 2.0
	PriorityLow      = 1.0
)

// Evaluation order matters: the greeting short-circuit runs first, the
// identity check second, then the tiers top-down, boosts last. Reordering
// changes classification outcomes.
var (
	greetingPattern = regexp.MustCompile(`(?i)(^(hi|hello|hey|bye|thanks|thank you|ok|okay|cool|nice|great|awesome)(\s|$)|^how are you)`)
	identityPattern = regexp.MustCompile(`(?i)\b(your name|my name)\b`)
)

var criticalPatterns = []*regexp.Regexp{
	// Security and sensitive information
	regexp.MustCompile(`(?i)password|key|secret|important|critical`),
	regexp.MustCompile(`(?i)remember|don't forget|urgent`),
	regexp.MustCompile(`(?i)private|confidential|sensitive`),

	// Personal information
	regexp.MustCompile(`(?i)phone|address|email|contact`),
	regexp.MustCompile(`(?i)birthday|anniversary|date`),
	regexp.MustCompile(`(?i)account|login|credentials`),

	// Task-related
	regexp.MustCompile(`(?i)deadline|due|schedule|appointment`),
	regexp.MustCompile(`(?i)project|task|todo|reminder`),
	regexp.MustCompile(`(?i)meeting|call|conference`),
}

var highPatterns = []*regexp.Regexp{
	// Questions and inquiries (must start with question word)
	regexp.MustCompile(`(?i)^(what|who|where|when|why|how)\s`),
	regexp.MustCompile(`(?i)^(can you )?(explain|describe|tell me|show me)`),
	regexp.MustCompile(`(?i)^(can you )?(help|assist|guide|support)`),

	// Commands and requests (must be at start)
	regexp.MustCompile(`(?i)^(please|could you|would you|can you)\s`),
	regexp.MustCompile(`(?i)^(need to|must|should|have to)\s`),
	regexp.MustCompile(`(?i)^(create|update|change|modify)\s`),

	// Learning and preferences (must be explicit)
	regexp.MustCompile(`(?i)\b(prefer|like|dislike|favorite)\b.{0,20}\bis\b`),
	regexp.MustCompile(`(?i)\b(learn|understand|know|remember)\b.{0,20}(about|how|why|what)`),
	regexp.MustCompile(`(?i)\b(always|never)\b.{0,20}(do|use|have|should)`),
}

var mediumPatterns = []*regexp.Regexp{
	// General conversation
	regexp.MustCompile(`(?i)\b(think|feel|believe)\b.{0,20}\babout\b`),
	regexp.MustCompile(`(?i)\b(interesting|curious|wonder)\b.{0,20}\b(about|if|how|why|what)\b`),
	regexp.MustCompile(`(?i)\b(maybe|perhaps|possibly)\b.{0,20}\b(should|could|would)\b`),

	// Status and updates
	regexp.MustCompile(`(?i)\b(status|progress)\b.{0,20}\bof\b`),
	regexp.MustCompile(`(?i)\b(working on|doing|making)\b.{0,20}\b(the|this|that|my)\b`),
	regexp.MustCompile(`(?i)\b(finished|completed|done)\b.{0,20}\b(with|the|this|that)\b`),
}

var emotionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)happy|sad|angry|excited|worried|anxious|love|hate`),
	regexp.MustCompile(`😊|😢|😠|😃|😨|😰|❤️|💔`),
	regexp.MustCompile(`!{2,}|\?{2,}`),
}

var (
	codePattern = regexp.MustCompile(`function|class|const|let|var`)
	urlPattern  = regexp.MustCompile(`https?://\S+`)
)

func matchesAny(patterns []*regexp.Regexp, content string) bool {
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}
