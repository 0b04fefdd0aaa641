// Package state tracks the single pending prompt ("slot") each user owes a reply to.
// Slots live in memory only and are forgotten on restart.
package state
