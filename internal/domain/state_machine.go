package domain

// State representa el estado del ciclo de vida de un servidor gestionado.
type State int

const (
	Offline State = iota
	Starting
	Running
	Stopping
	Stopped
)

var stateNames = []string{"Offline", "Starting", "Running", "Stopping", "Stopped"}

func (s State) String() string {
	if s < Offline || s > Stopped {
		return "Unknown"
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

var stateTransitionMap = map[State][]State{
	Offline:  {Starting},
	Starting: {Running, Stopping, Stopped},
	Running:  {Stopping, Stopped},
	Stopping: {Stopped},
	Stopped:  {Starting},
}

func Contains(states []State, state State) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// ValidStateTransition indica si la transición src -> dst está permitida.
func ValidStateTransition(src State, dst State) bool {
	return Contains(stateTransitionMap[src], dst)
}

// Terminal indica si el estado permite el borrado sin detener antes.
func (s State) Terminal() bool {
	return s == Offline || s == Stopped
}

// Live indica si hay un proceso vivo asociado a este estado.
func (s State) Live() bool {
	return s == Starting || s == Running || s == Stopping
}
