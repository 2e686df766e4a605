package workflow

// Reduce applies ev to s and returns the next state with the effects to run.
// Events that arrive outside their predecessor phase are ignored: the state
// comes back unchanged and no effects are returned.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case StartListening:
		return startListening(s)

	case ConsumeAutoRestart:
		if !s.AutoRestart {
			return s, nil
		}
		s.AutoRestart = false

		return startListening(s)

	case CaptureCancelled:
		if s.Phase != PhaseListening {
			return s, nil
		}
		s.Phase = PhaseErrored
		s.ErrorMessage = ErrRecognitionCancelled.Error()
		s.LastSentText = ""
		s.AutoRestart = false

		return s, nil

	case CaptureProduced:
		if s.Phase != PhaseListening {
			return s, nil
		}
		s.Phase = PhaseSending
		s.RecognizedText = ev.Text
		s.ErrorMessage = ""
		s.LastSentText = ""

		return s, []Effect{DeliverNote{Text: ev.Text}}

	case SendCompleted:
		if s.Phase != PhaseSending {
			return s, nil
		}

		if ev.Success {
			s.Phase = PhaseSent
			s.LastSentText = s.RecognizedText
			s.RecognizedText = ""
			s.ErrorMessage = ""
			s.AutoRestart = true

			return s, nil
		}

		// RecognizedText stays so the user can still see what failed to go out.
		s.Phase = PhaseErrored
		s.LastSentText = ""
		s.ErrorMessage = ErrDeliveryFailed.Error()
		s.AutoRestart = false

		return s, nil
	}

	return s, nil
}

func startListening(s State) (State, []Effect) {
	if !s.CanStartListening() {
		return s, nil
	}
	s.Phase = PhaseListening
	s.ErrorMessage = ""

	return s, []Effect{RequestCapture{}}
}
