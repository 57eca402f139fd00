package sources

import (
	"sort"
	"strconv"
	"strings"

	"helpdesk/internal/domain"
)

// Default messages, as shown to French-speaking help desk users.
const (
	DefaultNoSource = "Désolé je n'ai trouvé aucune ressource pour répondre à ta question"
	DefaultSingular = "Voici la source qui pourrait t'être utile :  \n- {sources}"
	DefaultPlural   = "Voici {count} sources qui pourraient t'être utiles :  \n- {sources}"

	// DefaultK is the number of citations returned when the caller does not choose.
	DefaultK = 2

	listSeparator = "  \n- "
)

// Messages holds the three citation block templates. Singular and Plural may
// use {sources}; Plural may also use {count}.
type Messages struct {
	NoSource string
	Singular string
	Plural   string
}

// DefaultMessages returns the built-in French messages.
func DefaultMessages() Messages {
	return Messages{NoSource: DefaultNoSource, Singular: DefaultSingular, Plural: DefaultPlural}
}

// Ranker turns retrieved chunks into a deduplicated, ranked citation block.
type Ranker struct {
	messages Messages
}

func NewRanker(messages Messages) *Ranker {
	if messages.NoSource == "" {
		messages.NoSource = DefaultNoSource
	}
	if messages.Singular == "" {
		messages.Singular = DefaultSingular
	}
	if messages.Plural == "" {
		messages.Plural = DefaultPlural
	}
	return &Ranker{messages: messages}
}

// Citation renders the markdown link label for a (title, source) pair.
func Citation(title, sourceID string) string {
	return "[" + title + "](" + sourceID + ")"
}

type tally struct {
	citation string
	count    int
	bestRank int
	// bestPos is the input position of the first occurrence holding bestRank.
	bestPos int
}

// Rank returns at most k distinct citations ordered by occurrence count. Ties
// go to the citation whose best-ranked occurrence appears earlier in chunks.
func (r *Ranker) Rank(chunks []domain.Chunk, k int) ([]string, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("k must be positive, got " + strconv.Itoa(k))
	}
	byCitation := make(map[string]*tally, len(chunks))
	tallies := make([]*tally, 0, len(chunks))
	for i, ch := range chunks {
		c := Citation(ch.Title, ch.SourceID)
		t, ok := byCitation[c]
		if !ok {
			t = &tally{citation: c, bestRank: ch.Rank, bestPos: i}
			byCitation[c] = t
			tallies = append(tallies, t)
		}
		t.count++
		if ch.Rank < t.bestRank {
			t.bestRank, t.bestPos = ch.Rank, i
		}
	}
	sort.SliceStable(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.bestPos < b.bestPos
	})
	if k > len(tallies) {
		k = len(tallies)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = tallies[i].citation
	}
	return out, nil
}

// Format renders ranked citations with the no-source, singular or plural message.
func (r *Ranker) Format(citations []string) string {
	switch len(citations) {
	case 0:
		return r.messages.NoSource
	case 1:
		return strings.NewReplacer("{sources}", citations[0], "{count}", "1").Replace(r.messages.Singular)
	default:
		return strings.NewReplacer(
			"{sources}", strings.Join(citations, listSeparator),
			"{count}", strconv.Itoa(len(citations)),
		).Replace(r.messages.Plural)
	}
}

// Summarize ranks the chunks and formats the result. It fails only when k <= 0.
func (r *Ranker) Summarize(chunks []domain.Chunk, k int) (string, error) {
	citations, err := r.Rank(chunks, k)
	if err != nil {
		return "", err
	}
	return r.Format(citations), nil
}
