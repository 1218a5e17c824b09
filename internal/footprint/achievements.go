package footprint

import "example.com/ecotrack/internal/emission"

// Achievement is a badge derived from a Summary.
type Achievement struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Earned bool   `json:"earned"`
}

type rule struct {
	code  string
	title string
	check func(Summary) bool
}

var rules = []rule{
	{code: "eco_starter", title: "Eco Starter", check: func(s Summary) bool {
		return s.TotalMass > 0
	}},
	{code: "green_commute", title: "Green Commute", check: func(s Summary) bool {
		return s.Share(emission.KindTransport) > 30
	}},
	{code: "recycler", title: "Recycler", check: func(s Summary) bool {
		return s.Share(emission.KindEnergy) < 20
	}},
}

// Achievements evaluates every badge against s. All badges are returned, earned or not.
func Achievements(s Summary) []Achievement {
	out := make([]Achievement, 0, len(rules))
	for _, r := range rules {
		out = append(out, Achievement{Code: r.code, Title: r.title, Earned: r.check(s)})
	}
	return out
}
