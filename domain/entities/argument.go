package entities

// Argument is one named value passed by the host into a call.
type Argument struct {
	Name  string
	Value Value
}

// Arg builds an Argument.
func Arg(name string, v Value) Argument {
	return Argument{Name: name, Value: v}
}
