package codebook

// Wildcard matches any variable name or code value in a relation lookup.
const Wildcard = "*"

// RelationCodes is an O(1) lookup of which relation rules apply to an
// annotation: variable name -> code value -> rule index -> permitted codes.
// Missing constraints are registered under the Wildcard key.
type RelationCodes map[string]map[string]map[int][]Code

func (rc RelationCodes) add(variable, value string, rule int, codes []Code) {
	if rc[variable] == nil {
		rc[variable] = make(map[string]map[int][]Code)
	}
	if rc[variable][value] == nil {
		rc[variable][value] = make(map[int][]Code)
	}
	rc[variable][value][rule] = codes
}

// Get merges the rules registered for (variable, value) with the wildcard
// entries, returning rule index -> permitted codes.
func (rc RelationCodes) Get(variable, value string) map[int][]Code {
	out := make(map[int][]Code)
	for _, v := range []string{variable, Wildcard} {
		byValue, ok := rc[v]
		if !ok {
			continue
		}
		for _, val := range []string{value, Wildcard} {
			for rule, codes := range byValue[val] {
				out[rule] = codes
			}
		}
	}
	return out
}

// MappedVariable is a variable plus its derived lookup tables.
type MappedVariable struct {
	Variable
	CodeMap map[string]Code

	// Only populated for relation variables.
	ValidFrom RelationCodes
	ValidTo   RelationCodes
}

// VariableMap indexes mapped variables by name.
type VariableMap map[string]*MappedVariable

// NewVariableMap builds the per-variable code map and, for relation
// variables, the from/to rule lookup tables. Rebuilt only on codebook
// change, so the O(variables x codes) cost is fine.
func NewVariableMap(vars []Variable) VariableMap {
	vm := make(VariableMap, len(vars))
	for _, v := range vars {
		mv := &MappedVariable{
			Variable: v,
			CodeMap:  make(map[string]Code, len(v.Codes)),
		}
		for _, c := range v.Codes {
			mv.CodeMap[c.Code] = c
		}
		if v.Type == Relation {
			mv.ValidFrom, mv.ValidTo = relationLookup(v.Relations)
		}
		vm[v.Name] = mv
	}
	return vm
}

// relationLookup registers every relation rule under its from/to
// constraints, using wildcards where a constraint is absent.
func relationLookup(rules []RelationRule) (validFrom, validTo RelationCodes) {
	validFrom = make(RelationCodes)
	validTo = make(RelationCodes)
	for i, rule := range rules {
		register(validFrom, rule.From, i, rule.Codes)
		register(validTo, rule.To, i, rule.Codes)
	}
	return validFrom, validTo
}

func register(rc RelationCodes, match *RelationMatch, rule int, codes []Code) {
	variable := Wildcard
	var values []string
	if match != nil {
		if match.Variable != "" {
			variable = match.Variable
		}
		values = match.Values
	}
	if len(values) == 0 {
		rc.add(variable, Wildcard, rule, codes)
		return
	}
	for _, v := range values {
		rc.add(variable, v, rule, codes)
	}
}

// Variables extracts the variable definitions from a prepared node list, in
// tree order. Only leaf nodes carry variables.
func Variables(nodes []Node) []Variable {
	var out []Variable
	for _, n := range nodes {
		if n.TreeType == TreeLeaf && n.Data.Variable != nil {
			out = append(out, *n.Data.Variable)
		}
	}
	return out
}
