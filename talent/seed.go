package talent

import (
	"context"
	_ "embed"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

//go:embed demo_seed.toml
var demoSeed string

// Seed is a batch of candidates, postings and placements loaded from TOML.
type Seed struct {
	Candidates []SeedCandidate `toml:"candidates"`
	Postings   []SeedPosting   `toml:"postings"`
	Placements []SeedPlacement `toml:"placements"`

	// Undecoded lists keys the file set that no field consumed, usually typos.
	Undecoded []string `toml:"-"`
}

type SeedCandidate struct {
	ID              string   `toml:"id"`
	Name            string   `toml:"name"`
	Headline        string   `toml:"headline"`
	Location        string   `toml:"location"`
	YearsExperience int      `toml:"years_experience"`
	Skills          []string `toml:"skills"`
	VerifiedSkills  []string `toml:"verified_skills"`
}

type SeedPosting struct {
	ID             string   `toml:"id"`
	Title          string   `toml:"title"`
	Location       string   `toml:"location"`
	RequiredSkills []string `toml:"required_skills"`
	Open           bool     `toml:"open"`
}

type SeedPlacement struct {
	Candidate string `toml:"candidate"`
	Job       string `toml:"job"`
	Stage     string `toml:"stage"`
}

// DemoSeed returns the built-in demo pipeline.
func DemoSeed() (Seed, error) {
	return DecodeSeed(strings.NewReader(demoSeed))
}

// DecodeSeed parses a seed document. Placement stages are validated here so
// a bad file fails before anything is written.
func DecodeSeed(r io.Reader) (Seed, error) {
	var s Seed
	md, err := toml.NewDecoder(r).Decode(&s)
	if err != nil {
		return Seed{}, errors.Wrapf(errors.ErrInvalidRequest, "failed to parse seed: %v", err)
	}
	for _, key := range md.Undecoded() {
		s.Undecoded = append(s.Undecoded, key.String())
	}

	for i, p := range s.Placements {
		if _, err := ParseStage(p.Stage); err != nil {
			return Seed{}, errors.WithDetailf(err, "placement %d: %s/%s", i, p.Candidate, p.Job)
		}
	}
	return s, nil
}

// SeedCounts reports what Apply wrote.
type SeedCounts struct {
	Candidates int
	Postings   int
	Placements int
}

// Apply upserts everything in s. Candidates and postings go first so
// placements can reference them.
func (s Seed) Apply(ctx context.Context, store Store) (SeedCounts, error) {
	var n SeedCounts
	for _, c := range s.Candidates {
		err := store.UpsertCandidate(ctx, Candidate{
			ID:              c.ID,
			Name:            c.Name,
			Headline:        c.Headline,
			Location:        c.Location,
			YearsExperience: c.YearsExperience,
			Skills:          c.Skills,
			VerifiedSkills:  c.VerifiedSkills,
		})
		if err != nil {
			return n, err
		}
		n.Candidates++
	}
	for _, p := range s.Postings {
		err := store.UpsertPosting(ctx, Posting{
			ID:             p.ID,
			Title:          p.Title,
			Location:       p.Location,
			RequiredSkills: p.RequiredSkills,
			Open:           p.Open,
		})
		if err != nil {
			return n, err
		}
		n.Postings++
	}
	for _, p := range s.Placements {
		if _, err := store.SetStage(ctx, p.Candidate, p.Job, Stage(p.Stage)); err != nil {
			return n, errors.WithDetailf(err, "placement: %s/%s", p.Candidate, p.Job)
		}
		n.Placements++
	}
	return n, nil
}
