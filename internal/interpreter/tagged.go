package interpreter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

// TaggedName identifies records produced by TaggedSchema.
const TaggedName = "tagged"

// value matches a number at the start of a tag's value. The number must end at
// whitespace, a unit letter or the end of the line, so "0,0123" and "1.2.3" do
// not match.
var value = regexp.MustCompile(`^(-?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][-+]?[0-9]+)?)(?:$|[\s%A-Za-zµ])`)

// TaggedSchema parses labelled free-text lines such as
//
//	Tempo (Prim): 0.0123 s
//	Memoria (Kruskal): 2048 KB
//	Custo (Prim): 1234.5678
//
// Times for both algorithms are required; memory, cost and size lines are optional.
type TaggedSchema struct {
	primary   algorithmPatterns
	secondary algorithmPatterns
	vertices  *regexp.Regexp
	edges     *regexp.Regexp
	anyTag    *regexp.Regexp
}

type algorithmPatterns struct {
	time   *regexp.Regexp
	memory *regexp.Regexp
	cost   *regexp.Regexp
}

// NewTaggedSchema builds the patterns for the two algorithm names.
func NewTaggedSchema(primaryName, secondaryName string) *TaggedSchema {
	return &TaggedSchema{
		primary:   patternsFor(primaryName),
		secondary: patternsFor(secondaryName),
		vertices:  regexp.MustCompile(`(?im)^\s*(?:n[uú]mero de )?v[eé]rtices\s*(?:\(V\))?\s*[:=]\s*([0-9]+)`),
		edges:     regexp.MustCompile(`(?im)^\s*(?:n[uú]mero de )?(?:arestas|edges)\s*(?:\(E\))?\s*[:=]\s*([0-9]+)`),
		anyTag: regexp.MustCompile(`\((?:` + regexp.QuoteMeta(primaryName) + `|` +
			regexp.QuoteMeta(secondaryName) + `)\)`),
	}
}

func patternsFor(name string) algorithmPatterns {
	tag := `[^\n(]*\(` + regexp.QuoteMeta(name) + `\)[^:=\n]*[:=][ \t]*([^\n]*)`
	return algorithmPatterns{
		time:   regexp.MustCompile(`(?i)(?:tempo|time)` + tag),
		memory: regexp.MustCompile(`(?i)(?:mem[oó]ria|memory|mem)` + tag),
		cost:   regexp.MustCompile(`(?i)(?:custo|cost|peso)` + tag),
	}
}

// Name implements Schema.
func (s *TaggedSchema) Name() string { return TaggedName }

// Detect claims output that mentions either algorithm name in parentheses.
func (s *TaggedSchema) Detect(stdout string) bool {
	return s.anyTag.MatchString(stdout)
}

// Parse implements Schema.
func (s *TaggedSchema) Parse(outcome *supervisor.RunOutcome) (*types.ResultRecord, error) {
	out := outcome.Stdout

	timePrimary, okPrimary, errPrimary := extract(s.primary.time, out)
	timeSecondary, okSecondary, errSecondary := extract(s.secondary.time, out)
	if !okPrimary || !okSecondary || errPrimary != nil || errSecondary != nil {
		return nil, parseErrorf(TaggedName, "failed to read timings")
	}
	if timePrimary < 0 || timeSecondary < 0 {
		return nil, parseErrorf(TaggedName, "negative timing (%s, %s)",
			types.FormatFloat(timePrimary), types.FormatFloat(timeSecondary))
	}

	rec := &types.ResultRecord{
		InstanceID:    outcome.InstanceID,
		TimePrimary:   timePrimary,
		TimeSecondary: timeSecondary,
		IsConnected:   !outcome.Disconnected,
		Schema:        TaggedName,
		Elapsed:       outcome.Elapsed,
		// Tagged output carries no solver verdict; the harness check is authoritative.
		SolverValidation: true,
	}

	for _, m := range []struct {
		re  *regexp.Regexp
		dst **float64
	}{
		{s.primary.memory, &rec.MemoryPrimary},
		{s.secondary.memory, &rec.MemorySecondary},
	} {
		v, ok, err := extract(m.re, out)
		if err != nil {
			return nil, parseErrorf(TaggedName, "failed to read memory: %v", err)
		}
		if ok {
			*m.dst = &v
		}
	}

	costPrimary, okCostPrimary, errCostPrimary := extract(s.primary.cost, out)
	costSecondary, okCostSecondary, errCostSecondary := extract(s.secondary.cost, out)
	if errCostPrimary != nil || errCostSecondary != nil {
		return nil, parseErrorf(TaggedName, "failed to read costs")
	}
	if okCostPrimary && okCostSecondary {
		rec.CostPrimary = costPrimary
		rec.CostSecondary = costSecondary
		rec.CostsReported = true
	}

	if m := s.vertices.FindStringSubmatch(out); m != nil {
		rec.VertexCount, _ = strconv.Atoi(m[1])
	}
	if m := s.edges.FindStringSubmatch(out); m != nil {
		rec.EdgeCount, _ = strconv.Atoi(m[1])
	}

	return rec, nil
}

// extract reads the value of the first line matching re. It reports false when
// no line matches and an error when the line's value is not a plain number.
func extract(re *regexp.Regexp, s string) (float64, bool, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false, nil
	}
	raw := strings.TrimSpace(m[1])
	n := value.FindStringSubmatch(raw)
	if n == nil {
		return 0, true, fmt.Errorf("invalid number %q", raw)
	}
	v, err := strconv.ParseFloat(n[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("invalid number %q", raw)
	}
	return v, true, nil
}
