package econ

import "github.com/erisproject/eris-sub002/internal/sim"

// TradeExecuted is published when a reservation commits.
type TradeExecuted struct {
	Market   sim.ID
	Buyer    sim.ID
	Quantity float64
	Price    float64 // per unit
	Payment  float64 // total, in price units
}

// ReservationReleased is published when a pending reservation is
// released or closed unredeemed.
type ReservationReleased struct {
	Market   sim.ID
	Buyer    sim.ID
	Quantity float64
	Refund   float64 // total refunded, in price units
}
