package edupage

import (
	"cmp"
	"slices"

	"edupage-client/lib/platforms/edupage/model"
	"edupage-client/lib/textutil"

	"github.com/antzucaro/matchr"
)

type UserMatch struct {
	User  model.User
	Score float64
}

func (g *Graph) users() []model.User {
	out := make([]model.User, 0, len(g.Teachers)+len(g.Students)+len(g.Parents))
	for _, t := range g.Teachers {
		out = append(out, t)
	}
	for _, s := range g.Students {
		out = append(out, s)
	}
	for _, p := range g.Parents {
		out = append(out, p)
	}
	return out
}

func nameScore(query string, person *model.Person) float64 {
	first := string(person.Firstname)
	last := string(person.Lastname)
	best := 0.0
	for _, candidate := range []string{first + " " + last, last + " " + first} {
		candidate = textutil.NormalizeName(candidate)
		if candidate == "" {
			continue
		}
		similarity := matchr.JaroWinkler(query, candidate, false)
		if similarity > best {
			best = similarity
		}
	}
	return best
}

// FindUsers ranks teachers, students and parents by how close their name is to name, in
// either "first last" or "last first" order, ignoring case and diacritics. Users scoring
// below threshold (0 to 1) are left out.
func (g *Graph) FindUsers(name string, threshold float64) []UserMatch {
	query := textutil.NormalizeName(name)
	if query == "" {
		return nil
	}

	var matches []UserMatch
	for _, user := range g.users() {
		score := nameScore(query, user.Profile())
		if score < threshold {
			continue
		}
		matches = append(matches, UserMatch{User: user, Score: score})
	}
	slices.SortStableFunc(matches, func(a, b UserMatch) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches
}
