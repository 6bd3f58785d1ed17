package opt

// Report is the flat record handed to reporting: the routes of the best
// solution and its cost.
type Report struct {
	Routes   [][]int `json:"routes" yaml:"routes"`
	BestCost float64 `json:"bestCost" yaml:"bestCost"`
}

// NewReport copies s into a Report.
func NewReport(s Solution, cost float64) Report {
	r := Report{Routes: make([][]int, len(s.Routes)), BestCost: cost}
	for i, rt := range s.Routes {
		r.Routes[i] = append([]int(nil), rt...)
	}
	return r
}

// Solution converts the report back into a Solution.
func (r Report) Solution() Solution {
	s := Solution{Routes: make([]Route, len(r.Routes))}
	for i, rt := range r.Routes {
		s.Routes[i] = append(Route(nil), rt...)
	}
	return s
}
