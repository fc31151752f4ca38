package model

import "strconv"

// ZoneKey renders a zone id as the string key used in availability and
// plan zone maps.  Unzoned tables use the pseudo key "unassigned".
func ZoneKey(zoneID uint64) string {
    return strconv.FormatUint(zoneID, 10)
}

// Table represents a physical table on a restaurant's floor.  Capacity is
// the number of covers the table seats on its own; larger parties are
// seated by combining adjacent tables.
//
// Fields:
//  ID           – primary key identifier.
//  RestaurantID – restaurant the table belongs to.
//  ZoneID       – floor zone the table sits in (nil when unzoned).
//  Label        – operator-facing label such as "T12".
//  Capacity     – covers the table seats.
//  Active       – inactive tables are never assigned.
type Table struct {
    ID           uint64  // restaurant_tables.id
    RestaurantID uint64  // restaurant_tables.restaurant_id
    ZoneID       *uint64 // restaurant_tables.zone_id (nullable)
    Label        string  // restaurant_tables.label
    Capacity     int     // restaurant_tables.capacity
    Active       bool    // restaurant_tables.is_active
}

// AdjacencyEdge records that two tables can be physically combined.  Edges
// are stored once per direction pair and treated as undirected by readers.
type AdjacencyEdge struct {
    RestaurantID    uint64 // table_adjacencies.restaurant_id
    TableID         uint64 // table_adjacencies.table_id
    AdjacentTableID uint64 // table_adjacencies.adjacent_table_id
}
