// Package knowledge holds a small local curriculum knowledge base.
// The retriever picks the snippet that best matches a question by
// keyword overlap; the snippet is injected into the generation prompt
// so answers stay grounded in grade-level material.
package knowledge

import "strings"

// Snippet is one curriculum entry.
type Snippet struct {
	Subject string
	Chapter string
	Content string
}

var subjectKeywords = map[string][]string{
	"Math":    {"math", "algebra", "geometry", "equation", "theorem", "fraction", "decimal", "multiplication", "division", "linear", "function"},
	"Science": {"science", "biology", "physics", "chemistry", "ecosystem", "water cycle", "photosynthesis", "energy", "motion", "cell", "atom", "leaves", "plant"},
	"Social":  {"history", "war", "ancient", "revolution", "geography", "culture", "government", "social"},
	"English": {"english", "literature", "grammar", "writing", "poem", "story", "reading"},
}

var base = []Snippet{
	{Subject: "Math", Chapter: "Fractions and Decimals", Content: "Fractions represent parts of a whole. Equivalent fractions name the same amount, and decimals are another way to write fractions with denominators of ten, hundred, or thousand."},
	{Subject: "Math", Chapter: "Linear Equations", Content: "A linear equation describes a straight-line relationship between variables. Solving it means finding the value that makes both sides equal, using inverse operations on each side."},
	{Subject: "Science", Chapter: "Plants and Seasons", Content: "Deciduous trees shed their leaves before winter. Shorter days and cooler temperatures slow photosynthesis, chlorophyll breaks down, and the tree seals off each leaf to conserve water and energy."},
	{Subject: "Science", Chapter: "The Water Cycle", Content: "Water moves between the earth and the atmosphere through evaporation, condensation, precipitation, and collection. The sun's energy drives the whole cycle."},
	{Subject: "Science", Chapter: "Matter and Atoms", Content: "All matter is made of atoms. Atoms combine into molecules, and the arrangement and motion of molecules determine whether a substance is solid, liquid, or gas."},
	{Subject: "Social", Chapter: "Ancient Civilizations", Content: "Early civilizations grew along rivers where farming was reliable. Surplus food allowed cities, trade, written language, and organized government to develop."},
	{Subject: "Social", Chapter: "Government and Citizens", Content: "A government makes and enforces rules for a community. Citizens participate by voting, serving, and holding their representatives accountable."},
	{Subject: "English", Chapter: "Story Elements", Content: "Stories are built from characters, setting, plot, conflict, and resolution. Understanding these elements helps readers summarize and compare texts."},
	{Subject: "English", Chapter: "Grammar Basics", Content: "A complete sentence needs a subject and a predicate. Punctuation marks the boundaries of ideas and changes how a sentence is read."},
}

// Retriever answers keyword lookups against the local knowledge base.
type Retriever struct {
	snippets []Snippet
}

func NewRetriever() *Retriever {
	return &Retriever{snippets: base}
}

// InferSubject guesses the subject of a question by keyword matching.
// English is the fallback, matching how the original material treats
// free-form questions.
func InferSubject(text string) string {
	lower := strings.ToLower(text)
	for _, subject := range []string{"Math", "Science", "Social", "English"} {
		for _, kw := range subjectKeywords[subject] {
			if strings.Contains(lower, kw) {
				return subject
			}
		}
	}
	return "English"
}

// Retrieve returns the content of the snippet best matching the
// question, or an empty string when nothing scores above zero outside
// the subject filter.
func (r *Retriever) Retrieve(question string) string {
	subject := InferSubject(question)
	words := strings.Fields(strings.ToLower(question))

	best := -1
	bestScore := 0
	for i, s := range r.snippets {
		if s.Subject != subject {
			continue
		}
		score := 0
		text := strings.ToLower(s.Chapter + " " + s.Content)
		for _, w := range words {
			w = strings.Trim(w, ".,?!\"'")
			if len(w) < 4 {
				continue
			}
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return ""
	}
	return r.snippets[best].Content
}
