package notify

// State is the unread accounting of the active conversation.
type State struct {
	UnreadCount int
	HasUnread   bool
	PanelOpen   bool
}

type InputKind int

const (
	InputMessageArrived InputKind = iota
	InputPanelVisibility
	InputReset
)

// Input is one transition request. FromOther applies to
// InputMessageArrived, Open to InputPanelVisibility and Count to InputReset.
type Input struct {
	Kind      InputKind
	FromOther bool
	Open      bool
	Count     int
}

func MessageArrived(fromOther bool) Input {
	return Input{Kind: InputMessageArrived, FromOther: fromOther}
}

func PanelVisibilityChanged(open bool) Input {
	return Input{Kind: InputPanelVisibility, Open: open}
}

func Reset(count int) Input {
	return Input{Kind: InputReset, Count: count}
}

// Effect is the storage action a transition asks for.
type Effect int

const (
	EffectNone Effect = iota
	EffectMarkRead
	EffectPersistUnread
)

func (e Effect) String() string {
	switch e {
	case EffectMarkRead:
		return "mark_read"
	case EffectPersistUnread:
		return "persist_unread"
	default:
		return "none"
	}
}

// Reduce is the unread state machine. It has no side effects; the returned
// Effect tells the caller what to persist.
func Reduce(s State, in Input) (State, Effect) {
	switch in.Kind {
	case InputMessageArrived:
		if s.PanelOpen {
			return s, EffectMarkRead
		}
		if !in.FromOther {
			return s, EffectNone
		}
		s.UnreadCount++
		s.HasUnread = true
		return s, EffectPersistUnread

	case InputPanelVisibility:
		if !in.Open {
			s.PanelOpen = false
			return s, EffectNone
		}
		if s.PanelOpen {
			return s, EffectNone
		}
		s.PanelOpen = true
		s.UnreadCount = 0
		s.HasUnread = false
		return s, EffectMarkRead

	case InputReset:
		if s.PanelOpen {
			s.UnreadCount = 0
			s.HasUnread = false
			if in.Count > 0 {
				return s, EffectMarkRead
			}
			return s, EffectNone
		}
		s.UnreadCount = max(in.Count, 0)
		s.HasUnread = s.UnreadCount > 0
		return s, EffectNone
	}
	return s, EffectNone
}
