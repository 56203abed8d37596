package models

// Operator is one owned character in the user's roster
type Operator struct {
	Name     string `json:"name"`
	Elite    int    `json:"elite"`    // promotion tier, 0..2
	Level    int    `json:"level"`    // informational only
	Rarity   int    `json:"rarity"`   // rarity tier, 1..6
	MaxSkill int    `json:"maxSkill"` // derived from Elite at import time
}

// RawOperator is one entry of the roster export the user imports
type RawOperator struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Own       bool   `json:"own"`
	Elite     int    `json:"elite"`
	Level     int    `json:"level"`
	Rarity    int    `json:"rarity"`
	Potential int    `json:"potential,omitempty"`
}

// MaxSkillForElite maps a promotion tier to the highest reachable skill
// slot: elite 0 -> 1, elite 1 -> 2, anything else -> 3.
func MaxSkillForElite(elite int) int {
	switch elite {
	case 0:
		return 1
	case 1:
		return 2
	default:
		return 3
	}
}

// ToOperator converts an export entry, deriving MaxSkill
func (r RawOperator) ToOperator() Operator {
	return Operator{
		Name:     r.Name,
		Elite:    r.Elite,
		Level:    r.Level,
		Rarity:   r.Rarity,
		MaxSkill: MaxSkillForElite(r.Elite),
	}
}
