// Package routing decides, per chat turn, which team members the coordinator
// delegates to. Select is a pure function of the coordinator definition, the
// prompt and the enabled member set so decisions are reproducible and
// auditable.
package routing

import (
	"strings"

	"github.com/haloagents/halo/config"
)

// Decision is the routing outcome for one turn: the coordination mode that
// was applied and the member IDs to invoke, in declared order. Grounding is
// set when the mode asks the assembler to add source-grounding instructions
// to the coordinator.
type Decision struct {
	Mode      string
	MemberIDs []string
	Grounding bool
}

// Select resolves the member set for a turn. members holds the coordinator's
// enabled member definitions (missing or disabled members are already
// excluded by the config store); declaration order comes from coord.Members.
//
// Modes:
//   - direct_only: empty set, the coordinator answers alone.
//   - always_delegate, coordinated_rag or empty: every enabled member.
//   - delegate_on_complexity: a member is included when any of its skill tags
//     appears, lowercased, as a substring of the lowercased prompt.
//   - anything else: treated as always_delegate.
func Select(coord config.AgentDefinition, prompt string, members []config.AgentDefinition) Decision {
	mode := strings.TrimSpace(coord.CoordinationMode)
	dec := Decision{Mode: mode, Grounding: mode == config.ModeCoordinatedRAG}

	switch mode {
	case config.ModeDirectOnly:
		return dec
	case config.ModeDelegateOnComplexity:
		dec.MemberIDs = matchBySkills(prompt, members)
		return dec
	default:
		// always_delegate, coordinated_rag, "" and unknown modes delegate to all.
		dec.MemberIDs = memberIDs(members)
		return dec
	}
}

func memberIDs(members []config.AgentDefinition) []string {
	if len(members) == 0 {
		return nil
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

func matchBySkills(prompt string, members []config.AgentDefinition) []string {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	promptLower := strings.ToLower(prompt)
	var selected []string
	for _, member := range members {
		for _, skill := range member.Skills {
			skill = strings.ToLower(strings.TrimSpace(skill))
			if skill != "" && strings.Contains(promptLower, skill) {
				selected = append(selected, member.ID)
				break
			}
		}
	}
	return selected
}
