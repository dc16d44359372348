package event

// Validate checks an event against its registry entry. The steps run in a
// fixed order and short-circuit on the first failure: type lookup,
// structural schema, business rule, authorization scope. Validate is pure;
// callers receive the matched TypeConfig so routing decisions reuse the
// same lookup.
func (r *Registry) Validate(ev *Event) (*TypeConfig, *RejectionError) {
	cfg, ok := r.Lookup(ev.Type)
	if !ok {
		return nil, Reject(CodeUnknownEventType, "event type is not registered: "+ev.Type)
	}

	if cfg.Schema != nil {
		if problems := cfg.Schema(ev.Data); len(problems) > 0 {
			return cfg, &RejectionError{
				Code:    CodeSchemaValidationFailed,
				Message: "event payload failed structural validation",
				Details: problems,
			}
		}
	}

	if cfg.BusinessRule != nil {
		if rej := cfg.BusinessRule(ev); rej != nil {
			return cfg, rej
		}
	}

	if rej := authorize(ev, cfg.Authorization); rej != nil {
		return cfg, rej
	}

	return cfg, nil
}

// authorize enforces the type's declared scope. Ownership itself is
// established upstream; the hub only requires the attribution needed to
// route the event.
func authorize(ev *Event, scope Scope) *RejectionError {
	switch scope {
	case ScopeSessionOwner:
		if ev.SessionID == "" || ev.UserID == "" {
			return Reject(CodeMissingSessionAuth, "session-owner events require sessionId and userId")
		}
	case ScopeUser:
		if ev.UserID == "" {
			return Reject(CodeMissingUserID, "user-scoped events require userId")
		}
	case ScopeSystem:
		if ev.Source != SourceSystem {
			return Reject(CodeInvalidSystemSource, "system events must originate from the system source")
		}
	}
	return nil
}
