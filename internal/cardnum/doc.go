// Package cardnum normalizes collector numbers for flexible equality.
//
// Collector numbers appear on cards in several shapes: plain slots ("92"),
// zero-padded slots ("092"), slot-of-total forms ("092/196"), and promo
// series numbers carrying an alphabetic prefix ("SWSH092", "XY-P 123").
// Normalization splits a raw number into its prefix and its digit run so
// that two numbers can be compared by print slot: "SWSH092" and "092/196"
// both occupy slot "092" even though their surface forms differ.
//
// Leading zeros are significant and kept verbatim; "92" and "092" are
// different digit strings and do not match.
package cardnum
