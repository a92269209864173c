// Package partition classifies a repository-relative path into a
// partition_id and its fixed authority_score. Classification is a pure,
// total function of the path: the same path always yields the same
// partition, in every process, forever.
package partition

import "strings"

// Result is the outcome of classifying one path.
type Result struct {
	PartitionID    string
	AuthorityScore float64
	Reason         string
}

// Authority scores are fixed per partition kind; dynamic partitions
// (role_*, lang_*, talent_*) all share their kind's score regardless of
// the specific role/language/talent id extracted from the path.
const (
	authorityRole    = 0.70
	authorityDom0    = 0.95
	authorityLang    = 0.85
	authorityTalent  = 0.50
	authoritySession = 0.20
	authorityScratch = 0.10
	authorityProject = 0.35
)

// rolePatterns match paths carrying role-specific guidance. Order within
// this list doesn't matter; it only matters relative to the other rules.
var rolePatterns = []string{
	"/prompts/roles/",
	"/roles/",
	"role-patterns",
	"best-practices",
}

// constitutionalPatterns identify top-level governance material. This rule
// must run after role detection: role prompts live under etc/prompts/,
// the same tree constitutional material lives under, so checking dom0
// first would misclassify them.
var constitutionalPatterns = []string{
	"claude.md",
	"manifest",
	"etc/prompts/",
	"etc/decisions/",
	".claude/",
	"decision-log",
	"decisions.log",
}

var languageDocRoots = []string{
	"lang/",
	"language-spec/",
	"specs/lang/",
	"/reference/",
}

var talentRoots = []string{
	"talent/",
	"talent-memory/",
	"memory/talent/",
}

var sessionPatterns = []string{
	"session/",
	"sessions/",
	"tmp/",
	"temp/",
	"/experiment/",
	"experiments/",
}

var scratchPatterns = []string{
	"whiteboard/",
	"scratch/",
	"wip/",
	"draft/",
}

var supportedLanguages = []string{
	"go", "python", "typescript", "javascript", "rust", "java", "ruby", "c", "cpp",
}

var roleNames = []string{
	"backend", "frontend", "devops", "security", "data", "design", "qa", "sre",
}

// Classify maps a repository-relative path to its partition and authority
// score. path is normalised (lowercased, backslashes converted to forward
// slashes) before any rule is evaluated.
func Classify(path string) Result {
	norm := normalize(path)

	if role, ok := matchAny(norm, rolePatterns); ok {
		id := "role_" + detectSubtype(norm, roleNames, role)
		return Result{PartitionID: id, AuthorityScore: authorityRole, Reason: "role pattern: " + role}
	}

	if pattern, ok := matchAny(norm, constitutionalPatterns); ok {
		return Result{PartitionID: "dom0", AuthorityScore: authorityDom0, Reason: "constitutional path: " + pattern}
	}

	if root, ok := matchAny(norm, languageDocRoots); ok {
		id := "lang_" + detectSubtype(norm, supportedLanguages, root)
		return Result{PartitionID: id, AuthorityScore: authorityLang, Reason: "language reference: " + root}
	}

	if root, ok := matchAny(norm, talentRoots); ok {
		id := "talent_" + talentID(norm, root)
		return Result{PartitionID: id, AuthorityScore: authorityTalent, Reason: "talent memory root: " + root}
	}

	if pattern, ok := matchAny(norm, sessionPatterns); ok {
		return Result{PartitionID: "session", AuthorityScore: authoritySession, Reason: "session/temporary path: " + pattern}
	}

	if pattern, ok := matchAny(norm, scratchPatterns); ok {
		return Result{PartitionID: "whiteboard", AuthorityScore: authorityScratch, Reason: "scratch path: " + pattern}
	}

	return Result{PartitionID: "project", AuthorityScore: authorityProject, Reason: "default"}
}

func normalize(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
}

func matchAny(path string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return p, true
		}
	}
	return "", false
}

// detectSubtype looks for a known subtype token (a language or role name)
// as a standalone word in the path, falling back to "general" when none
// is found.
func detectSubtype(path string, known []string, _ string) string {
	words := strings.FieldsFunc(path, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}
	for _, k := range known {
		if _, ok := wordSet[k]; ok {
			return k
		}
	}
	return "general"
}

// talentID extracts the path segment immediately following the matched
// talent root as the talent identifier, e.g. "talent/jdoe/notes.md" -> "jdoe".
func talentID(path, root string) string {
	idx := strings.Index(path, root)
	if idx < 0 {
		return "general"
	}
	rest := path[idx+len(root):]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	if rest == "" {
		return "general"
	}
	return rest
}
