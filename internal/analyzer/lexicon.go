package analyzer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zombar/reviewinsights/internal/models"
)

// IntentRule maps an intention to the phrases that trigger it
type IntentRule struct {
	Intent  string
	Phrases []string
}

// SegmentRule maps a user segment to the phrases that reveal it
type SegmentRule struct {
	Segment string
	Phrases []string
}

// Lexicon holds every word list and pattern table the analyzer consults.
// It is built once and never modified afterwards, so a single instance can be
// shared by concurrent analysis runs.
type Lexicon struct {
	sentiment       map[string]int
	intents         []IntentRule
	featurePatterns []*regexp.Regexp
	bugPatterns     []*regexp.Regexp
	competitors     []string
	segments        []SegmentRule
	highSeverity    []string
	mediumSeverity  []string
}

// DefaultLexicon returns the built-in tables
func DefaultLexicon() *Lexicon {
	lex := &Lexicon{
		sentiment:       make(map[string]int, len(defaultSentimentWords)),
		intents:         cloneIntentRules(defaultIntentRules),
		featurePatterns: mustCompileAll(defaultFeaturePatterns),
		bugPatterns:     mustCompileAll(defaultBugPatterns),
		competitors:     append([]string(nil), defaultCompetitors...),
		segments:        cloneSegmentRules(defaultSegmentRules),
		highSeverity:    append([]string(nil), defaultHighSeverityTerms...),
		mediumSeverity:  append([]string(nil), defaultMediumSeverityTerms...),
	}
	for word, weight := range defaultSentimentWords {
		lex.sentiment[word] = weight
	}
	return lex
}

// lexiconFile is the YAML shape accepted by LoadLexicon
type lexiconFile struct {
	Sentiment map[string]int `yaml:"sentiment"`
	Intents   []struct {
		Intent  string   `yaml:"intent"`
		Phrases []string `yaml:"phrases"`
	} `yaml:"intents"`
	FeaturePatterns []string `yaml:"feature_patterns"`
	BugPatterns     []string `yaml:"bug_patterns"`
	Competitors     []string `yaml:"competitors"`
	Segments        []struct {
		Segment string   `yaml:"segment"`
		Phrases []string `yaml:"phrases"`
	} `yaml:"segments"`
	Severity struct {
		High   []string `yaml:"high"`
		Medium []string `yaml:"medium"`
	} `yaml:"severity"`
}

// LoadLexicon reads a YAML override file on top of the defaults.
//
// Sentiment weights are merged into the default table; every other section
// replaces its default wholesale when present. Example:
//
//	sentiment:
//	  laggy: -2
//	competitors: [Spotify, Deezer]
//	feature_patterns:
//	  - '(?i)\bplease\s+add\s+([^.!?\n]+)'
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon builds a lexicon from YAML bytes on top of the defaults
func ParseLexicon(data []byte) (*Lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}

	lex := DefaultLexicon()

	for word, weight := range file.Sentiment {
		lex.sentiment[strings.ToLower(word)] = weight
	}

	if len(file.Intents) > 0 {
		rules := make([]IntentRule, 0, len(file.Intents))
		for _, in := range file.Intents {
			if !isKnownIntent(in.Intent) {
				return nil, fmt.Errorf("parse lexicon: unknown intent %q", in.Intent)
			}
			rules = append(rules, IntentRule{Intent: in.Intent, Phrases: lowerAll(in.Phrases)})
		}
		lex.intents = rules
	}

	if len(file.FeaturePatterns) > 0 {
		patterns, err := compileCapturePatterns(file.FeaturePatterns)
		if err != nil {
			return nil, fmt.Errorf("parse lexicon: feature_patterns: %w", err)
		}
		lex.featurePatterns = patterns
	}
	if len(file.BugPatterns) > 0 {
		patterns, err := compileCapturePatterns(file.BugPatterns)
		if err != nil {
			return nil, fmt.Errorf("parse lexicon: bug_patterns: %w", err)
		}
		lex.bugPatterns = patterns
	}

	if len(file.Competitors) > 0 {
		lex.competitors = append([]string(nil), file.Competitors...)
	}

	if len(file.Segments) > 0 {
		rules := make([]SegmentRule, 0, len(file.Segments))
		for _, s := range file.Segments {
			switch s.Segment {
			case models.SegmentNew, models.SegmentPower, models.SegmentReturning:
			default:
				return nil, fmt.Errorf("parse lexicon: unknown segment %q", s.Segment)
			}
			rules = append(rules, SegmentRule{Segment: s.Segment, Phrases: lowerAll(s.Phrases)})
		}
		lex.segments = rules
	}

	if len(file.Severity.High) > 0 {
		lex.highSeverity = lowerAll(file.Severity.High)
	}
	if len(file.Severity.Medium) > 0 {
		lex.mediumSeverity = lowerAll(file.Severity.Medium)
	}

	return lex, nil
}

// SentimentWeight returns the lexicon weight of a lowercased token
func (l *Lexicon) SentimentWeight(token string) (int, bool) {
	w, ok := l.sentiment[token]
	return w, ok
}

// Competitors returns the canonical competitor names
func (l *Lexicon) Competitors() []string {
	return append([]string(nil), l.competitors...)
}

func compileCapturePatterns(sources []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, err
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("pattern %q must have exactly one capture group", src)
		}
		out = append(out, re)
	}
	return out, nil
}

func mustCompileAll(sources []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(sources))
	for i, src := range sources {
		out[i] = regexp.MustCompile(src)
	}
	return out
}

func isKnownIntent(intent string) bool {
	switch intent {
	case models.IntentFeatureRequest, models.IntentBugReport, models.IntentPraise,
		models.IntentComplaint, models.IntentQuestion, models.IntentComparison:
		return true
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cloneIntentRules(rules []IntentRule) []IntentRule {
	out := make([]IntentRule, len(rules))
	for i, r := range rules {
		out[i] = IntentRule{Intent: r.Intent, Phrases: append([]string(nil), r.Phrases...)}
	}
	return out
}

func cloneSegmentRules(rules []SegmentRule) []SegmentRule {
	out := make([]SegmentRule, len(rules))
	for i, r := range rules {
		out[i] = SegmentRule{Segment: r.Segment, Phrases: append([]string(nil), r.Phrases...)}
	}
	return out
}

// defaultSentimentWords is a review-oriented word/weight table in the AFINN style
var defaultSentimentWords = map[string]int{
	// positive
	"love": 3, "loved": 3, "loves": 3, "loving": 2, "like": 2, "liked": 2, "likes": 2,
	"good": 3, "great": 3, "excellent": 3, "amazing": 4, "awesome": 4, "fantastic": 4,
	"wonderful": 4, "perfect": 3, "best": 3, "better": 2, "nice": 3, "cool": 1,
	"beautiful": 3, "brilliant": 4, "outstanding": 5, "superb": 5, "incredible": 4,
	"easy": 1, "intuitive": 2, "smooth": 2, "fast": 2, "helpful": 2, "useful": 2,
	"reliable": 2, "recommend": 2, "recommended": 2, "enjoy": 2, "enjoyed": 2,
	"happy": 3, "glad": 3, "pleased": 3, "satisfied": 2, "impressed": 3, "impressive": 3,
	"fun": 4, "thanks": 2, "thank": 2, "worth": 2, "works": 1, "fixed": 2, "improved": 2,
	"improvement": 2, "stable": 2, "clean": 2, "convenient": 2, "favorite": 2,
	"favourite": 2, "solid": 2, "superb-quality": 4, "wow": 4, "yay": 2, "win": 4,

	// negative
	"bad": -3, "terrible": -3, "awful": -3, "horrible": -3, "worst": -3, "worse": -3,
	"poor": -2, "hate": -3, "hated": -3, "hates": -3, "useless": -2, "waste": -1,
	"wasted": -2, "broken": -1, "broke": -1, "bug": -2, "bugs": -2, "buggy": -2,
	"crash": -2, "crashes": -2, "crashed": -2, "crashing": -2, "freeze": -1,
	"freezes": -1, "frozen": -1, "freezing": -1, "slow": -2, "laggy": -2, "lag": -2,
	"glitch": -2, "glitches": -2, "glitchy": -2, "error": -2, "errors": -2,
	"fail": -2, "failed": -2, "fails": -2, "failure": -2, "problem": -2, "problems": -2,
	"issue": -1, "issues": -1, "annoying": -2, "annoyed": -2, "frustrating": -2,
	"frustrated": -2, "disappointed": -2, "disappointing": -2, "disappointment": -2,
	"lost": -3, "lose": -3, "losing": -3, "unusable": -3, "unstable": -2, "confusing": -2,
	"confused": -2, "scam": -4, "fraud": -4, "ripoff": -3, "sucks": -3, "suck": -3,
	"stupid": -2, "ridiculous": -3, "angry": -3, "unhappy": -2, "sad": -2, "ugly": -3,
	"expensive": -1, "overpriced": -2, "spam": -2, "ads": -1, "uninstall": -2,
	"uninstalled": -2, "refund": -2, "wrong": -2, "difficult": -1, "hard": -1,
	"pathetic": -2, "garbage": -3, "trash": -3, "junk": -3, "rubbish": -3,
}

// defaultIntentRules is evaluated in order; all matching intents are kept
var defaultIntentRules = []IntentRule{
	{Intent: models.IntentFeatureRequest, Phrases: []string{
		"add", "wish", "would be nice", "would love", "please make", "should have",
		"need", "want", "feature", "option", "could you", "hope", "suggest", "request",
		"missing", "would be great", "bring back",
	}},
	{Intent: models.IntentBugReport, Phrases: []string{
		"crash", "bug", "error", "broken", "freez", "not working", "doesn't work",
		"does not work", "won't", "can't", "cannot", "glitch", "stuck", "fix",
		"keeps closing", "force close", "not loading", "won't load",
	}},
	{Intent: models.IntentPraise, Phrases: []string{
		"love", "great", "awesome", "amazing", "excellent", "perfect", "fantastic",
		"best app", "wonderful", "brilliant", "thank you", "highly recommend",
	}},
	{Intent: models.IntentComplaint, Phrases: []string{
		"terrible", "awful", "worst", "hate", "horrible", "annoying", "frustrating",
		"waste", "useless", "disappointed", "disappointing", "ridiculous", "rip off",
		"scam", "too many ads", "garbage",
	}},
	{Intent: models.IntentQuestion, Phrases: []string{
		"?", "how do", "how can", "how to", "why does", "why is", "is there",
		"can i", "does anyone", "what is",
	}},
	{Intent: models.IntentComparison, Phrases: []string{
		"better than", "worse than", "compared to", "comparison", "unlike", "instead of",
		" vs ", "versus", "switch to", "switched to", "switching to", "alternative",
		"similar to",
	}},
}

// defaultFeaturePatterns capture the requested thing in group 1. A capture
// ends at sentence punctuation, except for dots inside version numbers.
var defaultFeaturePatterns = []string{
	`(?i)\bwish(?:ed)?\s+(?:that\s+)?(?:there\s+(?:was|were|is)\s+|it\s+(?:had|has|could|would)\s+|you\s+(?:could|would|guys\s+would)\s+|they\s+(?:could|would)\s+)?((?:[^.!?\n]|\.\d)+)`,
	`(?i)\bneeds?\s+(?:to\s+(?:have|add|support)\s+)?((?:[^.!?\n]|\.\d)+)`,
	`(?i)\b(?:please\s+)?add(?:ing)?\s+((?:[^.!?\n]|\.\d)+)`,
	`(?i)\bwould\s+(?:be\s+(?:nice|great|cool|awesome|helpful)\s+(?:to\s+have\s+|if\s+(?:you\s+could\s+|there\s+was\s+|it\s+had\s+)?)?|love\s+(?:to\s+see\s+|it\s+if\s+)?)((?:[^.!?\n]|\.\d)+)`,
	`(?i)\bshould\s+(?:have|add|include|support|allow)\s+((?:[^.!?\n]|\.\d)+)`,
	`(?i)\b(?:feature\s+request|suggestion)\s*[:\-]?\s*((?:[^.!?\n]|\.\d)+)`,
	`(?i)\bplease\s+(?:make|let|allow|bring(?:\s+back)?|implement|include)\s+((?:[^.!?\n]|\.\d)+)`,
}

// defaultBugPatterns capture the failure description in group 1
var defaultBugPatterns = []string{
	`(?i)\b(?:crash(?:es|ed|ing)?|bugs?|errors?)\s+(?:when(?:ever)?|while|after|on|if|every\s*time)\s+((?:[^.!?\n]|\.\d)+)`,
	`(?i)\b((?:doesn'?t|does\s+not|won'?t|will\s+not|can'?t|cannot|unable\s+to)\s+(?:work|load|open|sync|save|connect|log\s*in|login|play|upload|download)(?:[^.!?\n]|\.\d)*)`,
	`(?i)\bkeeps?\s+((?:crash|freez|clos|logg|restart|stopp|glitch)\w*(?:[^.!?\n]|\.\d)*)`,
	`(?i)\b(?:not\s+working|broken|glitch(?:es|y)?|freez(?:es|ing))\s+(?:when|while|after|on|in|since)\s+((?:[^.!?\n]|\.\d)+)`,
	`(?i)\b(?:problem|issue)s?\s+(?:with|when)\s+((?:[^.!?\n]|\.\d)+)`,
	`(?i)\bsince\s+(?:the\s+)?(?:last|latest|new|recent)\s+(update(?:[^.!?\n]|\.\d)*)`,
}

var defaultCompetitors = []string{
	"Spotify", "Apple Music", "YouTube", "Netflix", "Instagram", "TikTok", "WhatsApp",
	"Telegram", "Snapchat", "Facebook", "Twitter", "Google Maps", "Waze", "Uber", "Lyft",
	"Duolingo", "Babbel", "Notion", "Evernote", "Todoist", "Trello", "Slack", "Discord",
	"Microsoft Teams", "Dropbox", "Google Drive", "Strava", "MyFitnessPal", "Headspace",
	"Venmo", "PayPal", "Cash App",
}

// defaultSegmentRules are checked in order: new, power, returning
var defaultSegmentRules = []SegmentRule{
	{Segment: models.SegmentNew, Phrases: []string{
		"just downloaded", "just installed", "first time", "new user", "just started",
		"just signed up", "beginner", "newbie", "first day",
	}},
	{Segment: models.SegmentPower, Phrases: []string{
		"power user", "use it daily", "use it every day", "every day", "daily user",
		"for years", "heavy user", "pro user", "advanced user", "since day one",
		"all the time",
	}},
	{Segment: models.SegmentReturning, Phrases: []string{
		"came back", "coming back", "reinstalled", "re-installed", "redownloaded",
		"re-downloaded", "used to use", "back again", "returned to", "gave it another",
	}},
}

var defaultHighSeverityTerms = []string{
	"crash", "data loss", "lost data", "lost all", "lost my", "deleted", "can't log",
	"cannot log", "can't login", "unusable", "won't open", "doesn't open", "won't start",
	"security", "hacked", "charged", "stolen", "corrupt",
}

var defaultMediumSeverityTerms = []string{
	"slow", "lag", "bug", "glitch", "freez", "error", "not working", "broken",
	"annoying", "doesn't work", "issue", "problem",
}
