package player

// Phase is the top-level playback phase.
type Phase uint8

// Playback phases.
const (
	PhaseInitDisk Phase = iota
	PhaseMountFs
	PhaseFindFiles
	PhaseNextFile
	PhasePlayRawFile
	PhasePlayIldaFile
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInitDisk:
		return "InitDisk"
	case PhaseMountFs:
		return "MountFs"
	case PhaseFindFiles:
		return "FindFiles"
	case PhaseNextFile:
		return "NextFile"
	case PhasePlayRawFile:
		return "PlayRawFile"
	case PhasePlayIldaFile:
		return "PlayIldaFile"
	default:
		return "Unknown"
	}
}

// IldaPhase is the sub-state of PhasePlayIldaFile.
type IldaPhase uint8

// ILDA sub-states.
const (
	IldaStart IldaPhase = iota
	IldaStartFrame
	IldaContinueFrame
	IldaPlayFrame
	IldaNextFrame
)

// String returns a string representation of the sub-state.
func (p IldaPhase) String() string {
	switch p {
	case IldaStart:
		return "Start"
	case IldaStartFrame:
		return "StartFrame"
	case IldaContinueFrame:
		return "ContinueFrame"
	case IldaPlayFrame:
		return "PlayFrame"
	case IldaNextFrame:
		return "NextFrame"
	default:
		return "Unknown"
	}
}

// State is a playback phase plus, for PhasePlayIldaFile only, its sub-state.
// The zero value is InitDisk.
type State struct {
	phase Phase
	ilda  IldaPhase
}

// NewState returns the state for phase p. PhasePlayIldaFile yields
// PlayIldaFile(Start).
func NewState(p Phase) State {
	return State{phase: p}
}

// IldaState returns PlayIldaFile(sub).
func IldaState(sub IldaPhase) State {
	return State{phase: PhasePlayIldaFile, ilda: sub}
}

// Phase returns the top-level phase.
func (s State) Phase() Phase {
	return s.phase
}

// Ilda returns the ILDA sub-state. ok is false outside PhasePlayIldaFile.
func (s State) Ilda() (sub IldaPhase, ok bool) {
	return s.ilda, s.phase == PhasePlayIldaFile
}

// String returns a string representation of the state.
func (s State) String() string {
	if s.phase == PhasePlayIldaFile {
		return s.phase.String() + "(" + s.ilda.String() + ")"
	}
	return s.phase.String()
}

// Event is the outcome of one tick of work.
type Event uint8

// Tick outcomes.
const (
	EventNone          Event = iota // work continues in the same state
	EventOK                         // the state's action succeeded
	EventFail                       // the state's action failed
	EventFilesFound                 // enumeration ended with at least one file
	EventNoFiles                    // enumeration ended empty
	EventRawOpened                  // a raw file is open and its rate applied
	EventIldaOpened                 // an ILDA file is open
	EventSkip                       // the selected file was rejected
	EventEndOfFile                  // the open file has nothing left to play
	EventFrameDrained               // every loaded point has been queued
	EventFrameComplete              // the loaded span covers the frame
	EventFramePartial               // part of the frame remains on disk
)

var eventNames = [...]string{
	EventNone:          "None",
	EventOK:            "OK",
	EventFail:          "Fail",
	EventFilesFound:    "FilesFound",
	EventNoFiles:       "NoFiles",
	EventRawOpened:     "RawOpened",
	EventIldaOpened:    "IldaOpened",
	EventSkip:          "Skip",
	EventEndOfFile:     "EndOfFile",
	EventFrameDrained:  "FrameDrained",
	EventFrameComplete: "FrameComplete",
	EventFramePartial:  "FramePartial",
}

// String returns a string representation of the event.
func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "Unknown"
}

// Transition returns the state following s when event e occurs. Pairs not
// listed leave the state unchanged.
func Transition(s State, e Event) State {
	switch s.phase {
	case PhaseInitDisk:
		if e == EventOK {
			return NewState(PhaseMountFs)
		}

	case PhaseMountFs:
		if e == EventOK {
			return NewState(PhaseFindFiles)
		}

	case PhaseFindFiles:
		switch e {
		case EventFilesFound:
			return NewState(PhaseNextFile)
		case EventNoFiles, EventFail:
			return NewState(PhaseMountFs)
		}

	case PhaseNextFile:
		switch e {
		case EventRawOpened:
			return NewState(PhasePlayRawFile)
		case EventIldaOpened:
			return IldaState(IldaStart)
		case EventSkip:
			return NewState(PhaseNextFile)
		case EventFail:
			return NewState(PhaseMountFs)
		}

	case PhasePlayRawFile:
		switch e {
		case EventEndOfFile, EventFail:
			return NewState(PhaseNextFile)
		}

	case PhasePlayIldaFile:
		return transitionIlda(s, e)
	}
	return s
}

func transitionIlda(s State, e Event) State {
	switch s.ilda {
	case IldaStart:
		if e == EventOK {
			return IldaState(IldaStartFrame)
		}

	case IldaStartFrame, IldaContinueFrame:
		switch e {
		case EventOK:
			return IldaState(IldaPlayFrame)
		case EventFail, EventEndOfFile:
			return NewState(PhaseNextFile)
		}

	case IldaPlayFrame:
		if e == EventFrameDrained {
			return IldaState(IldaNextFrame)
		}

	case IldaNextFrame:
		switch e {
		case EventFrameComplete:
			return IldaState(IldaStartFrame)
		case EventFramePartial:
			return IldaState(IldaContinueFrame)
		}
	}
	return s
}
