package matrix

// Command discriminators carried in the comhead field of every request.
const (
	cmdLogin       = "login"
	cmdVideoStatus = "get video status"
	cmdVideoSwitch = "video switch"
)

// resultOK is the value of the result field on a successful reply.
const resultOK = 1

// Status is a point-in-time capture of the matrix as reported by the device.
// Values returned by the client are never mutated afterwards; use Clone before
// handing a Status to code that might.
type Status struct {
	Power       int
	Routes      []int // index i holds the input feeding output i+1
	InputNames  []string
	OutputNames []string
	PresetNames []string
}

// InputFor returns the input currently routed to output (1-indexed). ok is
// false when output is unknown or the device reported a value outside the
// valid input range.
func (s Status) InputFor(output, inputs int) (input int, ok bool) {
	if output < 1 || output > len(s.Routes) {
		return 0, false
	}
	input = s.Routes[output-1]
	if input < 1 || (inputs > 0 && input > inputs) {
		return input, false
	}
	return input, true
}

// Clone returns a deep copy of the status.
func (s Status) Clone() Status {
	return Status{
		Power:       s.Power,
		Routes:      cloneInts(s.Routes),
		InputNames:  cloneStrings(s.InputNames),
		OutputNames: cloneStrings(s.OutputNames),
		PresetNames: cloneStrings(s.PresetNames),
	}
}

// loginRequest is the body of a login command.
type loginRequest struct {
	Comhead  string `json:"comhead"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// statusRequest is the body of a get video status command.
type statusRequest struct {
	Comhead  string `json:"comhead"`
	Language int    `json:"language"`
}

// switchRequest is the body of a video switch command. Source is
// [output, input].
type switchRequest struct {
	Comhead  string `json:"comhead"`
	Language int    `json:"language"`
	Source   [2]int `json:"source"`
}

// resultReply covers login and video switch replies. Result is a pointer so
// a missing field can be told apart from a zero.
type resultReply struct {
	Comhead string `json:"comhead"`
	Result  *int   `json:"result"`
}

// statusReply mirrors the get video status reply.
type statusReply struct {
	Comhead       string   `json:"comhead"`
	Power         int      `json:"power"`
	AllSource     []int    `json:"allsource"`
	AllInputName  []string `json:"allinputname"`
	AllOutputName []string `json:"alloutputname"`
	AllName       []string `json:"allname"`
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
