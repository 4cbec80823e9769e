// Package envcheck reports which settings in a .env file are still missing
// or left at their generated placeholder.
package envcheck

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/savaki/airflow-kit/internal/bootstrap"
	"github.com/savaki/airflow-kit/internal/errors"
)

type Group struct {
	Name string
	Keys []string
}

var Groups = []Group{
	{Name: "airflow", Keys: []string{"AIRFLOW_UID"}},
	{Name: "aws", Keys: []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_DEFAULT_REGION"}},
	{Name: "reddit", Keys: []string{"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET"}},
	{Name: "redshift", Keys: []string{"REDSHIFT_HOST", "REDSHIFT_PORT", "REDSHIFT_DATABASE", "REDSHIFT_USER", "REDSHIFT_PASSWORD"}},
}

type Reason string

const (
	Missing     Reason = "missing"
	Empty       Reason = "empty"
	Placeholder Reason = "placeholder"
)

type Problem struct {
	Group  string
	Key    string
	Reason Reason
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s is %s", p.Group, p.Key, p.Reason)
}

type Report struct {
	Groups   []string
	Problems []Problem
}

func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Failed reports whether group has at least one problem.
func (r *Report) Failed(group string) bool {
	for _, p := range r.Problems {
		if p.Group == group {
			return true
		}
	}
	return false
}

// Load reads the .env file at path.
func Load(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s (run airflow-kit setup first)", errors.ErrEnvFileMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

// Check validates env against groups, or against every known group when none
// are given.
func Check(env map[string]string, groups ...Group) *Report {
	if len(groups) == 0 {
		groups = Groups
	}

	report := &Report{}
	for _, g := range groups {
		report.Groups = append(report.Groups, g.Name)
		for _, key := range g.Keys {
			value, ok := env[key]
			switch {
			case !ok:
				report.Problems = append(report.Problems, Problem{Group: g.Name, Key: key, Reason: Missing})
			case value == "":
				report.Problems = append(report.Problems, Problem{Group: g.Name, Key: key, Reason: Empty})
			case bootstrap.IsPlaceholder(value):
				report.Problems = append(report.Problems, Problem{Group: g.Name, Key: key, Reason: Placeholder})
			}
		}
	}
	return report
}

// Lookup returns the groups named in names.
func Lookup(names ...string) ([]Group, error) {
	var groups []Group
	for _, name := range names {
		found := false
		for _, g := range Groups {
			if g.Name == name {
				groups = append(groups, g)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown settings group %q", name)
		}
	}
	return groups, nil
}
