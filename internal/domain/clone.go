package domain

import "time"

// Clone returns a deep copy so transitions never mutate a shared snapshot.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	out := *d
	out.Evidence = cloneEvidence(d.Evidence)
	if d.RespondentResponse != nil {
		rr := *d.RespondentResponse
		rr.Evidence = cloneEvidence(rr.Evidence)
		out.RespondentResponse = &rr
	}
	if d.AdminDecision != nil {
		ad := *d.AdminDecision
		out.AdminDecision = &ad
	}
	if d.NegotiationRoom != nil {
		room := *d.NegotiationRoom
		if room.FinalAgreement != nil {
			fa := *room.FinalAgreement
			fa.ProposalAmount = cloneMoney(fa.ProposalAmount)
			fa.ProposedReturnDate = cloneTime(fa.ProposedReturnDate)
			fa.ProposedAt = cloneTime(fa.ProposedAt)
			fa.DecidedAt = cloneTime(fa.DecidedAt)
			fa.AgreedAt = cloneTime(fa.AgreedAt)
			room.FinalAgreement = &fa
		}
		out.NegotiationRoom = &room
	}
	if d.RescheduleRequest != nil {
		rr := *d.RescheduleRequest
		rr.Evidence = cloneEvidence(rr.Evidence)
		if rr.OwnerResponse != nil {
			or := *rr.OwnerResponse
			rr.OwnerResponse = &or
		}
		out.RescheduleRequest = &rr
	}
	if d.ThirdPartyResolution != nil {
		tp := *d.ThirdPartyResolution
		if tp.SharedData != nil {
			sd := *tp.SharedData
			sd.PartyInfo = append([]PartyContact(nil), sd.PartyInfo...)
			tp.SharedData = &sd
		}
		if tp.Evidence != nil {
			ev := cloneThirdPartyEvidence(*tp.Evidence)
			tp.Evidence = &ev
		}
		if tp.RejectedEvidence != nil {
			rejected := make([]RejectedEvidence, len(tp.RejectedEvidence))
			for i, r := range tp.RejectedEvidence {
				r.Evidence = cloneThirdPartyEvidence(r.Evidence)
				rejected[i] = r
			}
			tp.RejectedEvidence = rejected
		}
		out.ThirdPartyResolution = &tp
	}
	if d.Settlements != nil {
		out.Settlements = append([]SettlementRecord(nil), d.Settlements...)
	}
	if d.Resolution != nil {
		res := *d.Resolution
		if res.Ruling != nil {
			ruling := *res.Ruling
			res.Ruling = &ruling
		}
		out.Resolution = &res
	}
	if d.Timeline != nil {
		out.Timeline = make([]TimelineEntry, len(d.Timeline))
		for i, entry := range d.Timeline {
			if entry.Details != nil {
				details := make(map[string]any, len(entry.Details))
				for k, v := range entry.Details {
					details[k] = v
				}
				entry.Details = details
			}
			out.Timeline[i] = entry
		}
	}
	return &out
}

func cloneEvidence(e Evidence) Evidence {
	if e.MediaURIs != nil {
		e.MediaURIs = append([]string(nil), e.MediaURIs...)
	}
	return e
}

func cloneThirdPartyEvidence(e ThirdPartyEvidence) ThirdPartyEvidence {
	if e.Photos != nil {
		e.Photos = append([]string(nil), e.Photos...)
	}
	if e.Documents != nil {
		e.Documents = append([]string(nil), e.Documents...)
	}
	return e
}

func cloneMoney(m *Money) *Money {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
