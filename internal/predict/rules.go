package predict

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"picktally/internal/types"
)

// Rules is the default winner-extraction strategy. It applies ordered
// heuristics with false-positive guards:
//
//  1. "Final score: <team> 27, <other> 20" statements (strongest).
//  2. Explicit prediction contexts ("pick:", "who wins", "to win
//     outright", ...) followed by a team synonym, skipping phrases
//     that look like point-spread calls.
//  3. Scorelines ("<team> 27, <other> 20") with synonym verification.
//  4. Weak labeled fields ("moneyline: ...", "pick: ...").
//
// All matching is case-insensitive. Ties and missing signal map to
// ambiguous.
type Rules struct {
	teamA teamPatterns
	teamB teamPatterns
}

type teamPatterns struct {
	synonyms   map[string]bool
	contexts   []*regexp.Regexp
	scoreline  *regexp.Regexp
	finalScore *regexp.Regexp
}

// contextTemplates are the explicit prediction phrasings. %TEAM% is
// replaced with the synonym alternation group.
var contextTemplates = []string{
	`moneyline\s*pick\s*[:\-]?\s*%TEAM%`,
	`pick\s*[:\-]?\s*%TEAM%`,
	`prediction\s*[:\-]?\s*%TEAM%`,
	`who\s*wins[?:]?\s*%TEAM%`,
	`to\s*win\s*(?:outright|straight\s*up)?\s*[:\-]?\s*%TEAM%`,
	`winner\s*[:\-]?\s*%TEAM%`,
	`straight\s*up\s*[:\-]?\s*%TEAM%`,
}

var (
	// Spread guard: "cover the spread", "ATS", or a line like -2.5
	// means the phrase is about the spread, not the outright winner.
	spreadWordRe = regexp.MustCompile(`(?i)\b(?:spread|cover|ATS)\b`)
	spreadLineRe = regexp.MustCompile(`[+-]\d+(\.\d+)?\b`)

	// Weak labeled fields checked last.
	moneylineFieldRe  = regexp.MustCompile(`(?i)\bmoneyline[:\s]+([0-9A-Za-z\.\s']+)`)
	pickFieldRe       = regexp.MustCompile(`(?i)\bpick[:\s]+([0-9A-Za-z\.\s']+)`)
	predictionFieldRe = regexp.MustCompile(`(?i)\bprediction[:\s]+([0-9A-Za-z\.\s']+)`)
)

// NewRules compiles per-team patterns for the matchup.
func NewRules(m types.Matchup) *Rules {
	return &Rules{
		teamA: compileTeam(m.TeamA.Synonyms),
		teamB: compileTeam(m.TeamB.Synonyms),
	}
}

func (r *Rules) Name() string { return "rules" }

// Predict applies the ordered heuristics to the text.
func (r *Rules) Predict(text string) types.Prediction {
	// 1. Final-score statements override everything else.
	if winner, phrase, ok := finalScoreWinner(r.teamA, text, types.WinnerTeamA, types.WinnerTeamB); ok {
		return types.Prediction{Winner: winner, Method: MethodFinalScore, MatchPhrase: phrase}
	}
	if winner, phrase, ok := finalScoreWinner(r.teamB, text, types.WinnerTeamB, types.WinnerTeamA); ok {
		return types.Prediction{Winner: winner, Method: MethodFinalScore, MatchPhrase: phrase}
	}

	// 2. Explicit contexts, spread-guarded and synonym-verified.
	if phrase, ok := explicitMatch(r.teamA, text); ok {
		return types.Prediction{Winner: types.WinnerTeamA, Method: MethodExplicit, MatchPhrase: phrase}
	}
	if phrase, ok := explicitMatch(r.teamB, text); ok {
		return types.Prediction{Winner: types.WinnerTeamB, Method: MethodExplicit, MatchPhrase: phrase}
	}

	// 3. Scorelines with synonym verification.
	if winner, phrase, ok := scorelineWinner(r.teamA, text, types.WinnerTeamA, types.WinnerTeamB); ok {
		return types.Prediction{Winner: winner, Method: MethodScoreline, MatchPhrase: phrase}
	}
	if winner, phrase, ok := scorelineWinner(r.teamB, text, types.WinnerTeamB, types.WinnerTeamA); ok {
		return types.Prediction{Winner: winner, Method: MethodScoreline, MatchPhrase: phrase}
	}

	// 4. Weak labeled fields.
	weak := []struct {
		re     *regexp.Regexp
		method string
	}{
		{moneylineFieldRe, MethodMoneyline},
		{pickFieldRe, MethodPick},
		{predictionFieldRe, MethodPrediction},
	}
	for _, w := range weak {
		idx := w.re.FindStringSubmatchIndex(text)
		if idx == nil || looksLikeSpread(matchWindow(text, idx[0], idx[1])) {
			continue
		}
		blob := strings.ToLower(text[idx[2]:idx[3]])
		if containsSynonym(blob, r.teamA.synonyms) {
			return types.Prediction{Winner: types.WinnerTeamA, Method: w.method, MatchPhrase: text[idx[0]:idx[1]]}
		}
		if containsSynonym(blob, r.teamB.synonyms) {
			return types.Prediction{Winner: types.WinnerTeamB, Method: w.method, MatchPhrase: text[idx[0]:idx[1]]}
		}
	}

	return types.Prediction{Winner: types.WinnerAmbiguous, Method: MethodNone}
}

// compileTeam builds the synonym set and regexes for one team.
// Synonyms are alternated longest-first so "Houston Texans" wins over
// "Houston".
func compileTeam(synonyms []string) teamPatterns {
	set := make(map[string]bool, len(synonyms))
	for _, s := range synonyms {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			set[s] = true
		}
	}

	escaped := make([]string, 0, len(set))
	for s := range set {
		escaped = append(escaped, regexp.QuoteMeta(s))
	}
	sort.Slice(escaped, func(i, j int) bool { return len(escaped[i]) > len(escaped[j]) })
	group := "(" + strings.Join(escaped, "|") + ")"

	tp := teamPatterns{synonyms: set}
	for _, tmpl := range contextTemplates {
		tp.contexts = append(tp.contexts,
			regexp.MustCompile(`(?i)`+strings.ReplaceAll(tmpl, "%TEAM%", group)))
	}
	// The opponent-name class allows digits so names like "49ers"
	// match; the trailing score then needs leading whitespace and a
	// word boundary to keep it from splitting such names.
	const scoreTail = `\s*(\d{1,2})\s*[,–-]\s*([0-9A-Za-z\s\.']+?)\s+(\d{1,2})\b`
	tp.scoreline = regexp.MustCompile(`(?i)` + group + scoreTail)
	tp.finalScore = regexp.MustCompile(`(?i)final\s*score[:\s]*` + group + scoreTail)
	return tp
}

// finalScoreWinner resolves a "final score" statement naming this
// team first. The higher score side wins; equal scores give no signal.
func finalScoreWinner(tp teamPatterns, text string, self, other types.Winner) (types.Winner, string, bool) {
	m := tp.finalScore.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	selfScore, err1 := strconv.Atoi(m[2])
	otherScore, err2 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || selfScore == otherScore {
		return "", "", false
	}
	if selfScore > otherScore {
		return self, m[0], true
	}
	return other, m[0], true
}

// explicitMatch checks the context patterns, rejecting spread-like
// phrases and matches whose captured token is not a known synonym.
// The spread guard inspects a window around the match because line
// qualifiers ("-2.5", "ATS") usually sit just outside it.
func explicitMatch(tp teamPatterns, text string) (string, bool) {
	for _, re := range tp.contexts {
		idx := re.FindStringSubmatchIndex(text)
		if idx == nil || looksLikeSpread(matchWindow(text, idx[0], idx[1])) {
			continue
		}
		token := strings.ToLower(strings.TrimSpace(text[idx[2]:idx[3]]))
		if token == "" || tp.synonyms[token] {
			return text[idx[0]:idx[1]], true
		}
	}
	return "", false
}

// matchWindow widens a match span by a few words on each side.
func matchWindow(text string, start, end int) string {
	const pad = 24
	if start -= pad; start < 0 {
		start = 0
	}
	if end += pad; end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// scorelineWinner resolves a bare "<team> 27, <other> 20" scoreline
// naming this team first.
func scorelineWinner(tp teamPatterns, text string, self, other types.Winner) (types.Winner, string, bool) {
	m := tp.scoreline.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	token := strings.ToLower(strings.TrimSpace(m[1]))
	if !tp.synonyms[token] {
		return "", "", false
	}
	selfScore, err1 := strconv.Atoi(m[2])
	otherScore, err2 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || selfScore == otherScore {
		return "", "", false
	}
	if selfScore > otherScore {
		return self, m[0], true
	}
	return other, m[0], true
}

// looksLikeSpread reports whether a phrase reads as an against-the-
// spread call rather than an outright winner call.
func looksLikeSpread(s string) bool {
	return spreadWordRe.MatchString(s) || spreadLineRe.MatchString(s)
}

func containsSynonym(blob string, synonyms map[string]bool) bool {
	for syn := range synonyms {
		if strings.Contains(blob, syn) {
			return true
		}
	}
	return false
}
