package draft

import "github.com/shopspring/decimal"

// selectPayer makes userID the only payer in single mode, or flips its payer
// flag in multiple mode. A new payer in multiple mode starts at the full
// amount, which the user is expected to correct.
func selectPayer(d *Draft, userID int64) {
	i := d.indexOf(userID)
	if i < 0 {
		return
	}

	if d.PayerMode == PayerModeMultiple {
		p := &d.Participants[i]
		if p.IsPayer {
			p.IsPayer = false
			p.PaidAmount = decimal.Zero
			if d.SinglePayerID == userID {
				d.SinglePayerID = 0
			}
		} else {
			p.IsPayer = true
			p.PaidAmount = d.Amount
		}
		return
	}

	for j := range d.Participants {
		d.Participants[j].IsPayer = false
		d.Participants[j].PaidAmount = decimal.Zero
	}
	d.Participants[i].IsPayer = true
	d.Participants[i].PaidAmount = d.Amount
	d.SinglePayerID = userID
}

// setPayerAmount sets a payer's contribution in multiple mode. Other payers
// are left as they are, even if the contributions no longer add up.
func setPayerAmount(d *Draft, userID int64, raw string) {
	if d.PayerMode != PayerModeMultiple {
		return
	}
	i := d.indexOf(userID)
	if i < 0 || !d.Participants[i].IsPayer {
		return
	}

	value := parseInput(raw)
	if value.IsNegative() {
		value = decimal.Zero
	}
	d.Participants[i].PaidAmount = value
}

// switchMode changes the payer mode. Going from several payers to a single one
// clears every payer rather than guessing which one to keep.
func switchMode(d *Draft, mode PayerMode) {
	if mode != PayerModeSingle && mode != PayerModeMultiple {
		return
	}
	if mode == d.PayerMode {
		return
	}
	d.PayerMode = mode

	if mode == PayerModeMultiple {
		return
	}

	payers := d.Payers()
	switch len(payers) {
	case 0:
	case 1:
		i := d.indexOf(payers[0].User.ID)
		d.Participants[i].PaidAmount = d.Amount
		d.SinglePayerID = payers[0].User.ID
	default:
		clearPayers(d)
	}
}

// syncPayersToAmount runs after the total changed. A lone payer follows the
// total; several payers keep what was entered. A total that is not positive
// drops the payer selection.
func syncPayersToAmount(d *Draft) {
	if !d.Amount.IsPositive() {
		clearPayers(d)
		return
	}

	payers := d.Payers()
	if len(payers) != 1 {
		return
	}
	i := d.indexOf(payers[0].User.ID)
	d.Participants[i].PaidAmount = d.Amount
}

func clearPayers(d *Draft) {
	for i := range d.Participants {
		d.Participants[i].IsPayer = false
		d.Participants[i].PaidAmount = decimal.Zero
	}
	d.SinglePayerID = 0
}
