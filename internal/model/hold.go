package model

import "time"

// TableHold is a short-lived reservation of one or more tables.  Holds make
// a tentative assignment visible to concurrent availability lookups before
// the booking is durably confirmed, and expire automatically at ExpiresAt
// if never confirmed.
//
// Fields:
//  ID               – opaque hold token, also the primary key.
//  BookingID        – booking the hold was placed for.
//  RestaurantID     – restaurant the tables belong to.
//  TableIDs         – tables reserved by the hold.
//  RequireAdjacency – whether the member tables were required to be combinable.
//  Slot             – time window the hold blocks.
//  ExpiresAt        – when the hold lapses.
//  CreatedBy        – actor that placed the hold.
//  CreatedAt        – creation timestamp.
type TableHold struct {
    ID               string    // table_holds.id
    BookingID        uint64    // table_holds.booking_id
    RestaurantID     uint64    // table_holds.restaurant_id
    TableIDs         []uint64  // table_hold_members.table_id
    RequireAdjacency bool      // table_holds.require_adjacency
    Slot             TimeSlot  // table_holds.start_at / end_at
    ExpiresAt        time.Time // table_holds.expires_at
    CreatedBy        string    // table_holds.created_by
    CreatedAt        time.Time // table_holds.created_at
}

// HoldRequest carries everything the hold service needs to place a hold.
// RequireAdjacency is enforced server-side: a multi-table request whose
// tables are not combinable is rejected rather than silently accepted.
type HoldRequest struct {
    BookingID        uint64
    RestaurantID     uint64
    TableIDs         []uint64
    RequireAdjacency bool
    Slot             TimeSlot
    TTL              time.Duration
    CreatedBy        string
}
