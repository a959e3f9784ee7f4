package access

import (
	"fmt"
	"os"

	"github.com/tendant/agencyhub/pkg/domain"
	"gopkg.in/yaml.v3"
)

// policyFile is the YAML layout of a policy override:
//
//	roles:
//	  owner: [agency:read, agency:update, ...]
//	  admin: [...]
type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPolicy reads a role matrix from a YAML file. Roles missing from the
// file keep their default actions.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses a YAML role matrix on top of DefaultPolicy.
func ParsePolicy(data []byte) (*Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}

	roles := DefaultPolicy().Matrix()
	for name, actions := range f.Roles {
		list := make([]Action, 0, len(actions))
		for _, a := range actions {
			list = append(list, Action(a))
		}
		roles[domain.Role(name)] = list
	}

	return NewPolicy(roles)
}

// Matrix returns a copy of the policy as role -> actions, in AllActions order.
func (p *Policy) Matrix() map[domain.Role][]Action {
	out := make(map[domain.Role][]Action, len(p.roles))
	for role, set := range p.roles {
		list := make([]Action, 0, len(set))
		for _, a := range AllActions {
			if _, ok := set[a]; ok {
				list = append(list, a)
			}
		}
		out[role] = list
	}
	return out
}
