// Package discovery finds network printers over mDNS / DNS-SD so an
// administrator can pick one instead of typing its address.
//
// Two service types are browsed in parallel for a fixed window:
// _ipp._tcp (mapped to the ipp protocol, with the TXT "rp" key as the
// status path) and _pdl-datastream._tcp (mapped to raw9100). Results are
// suggestions only; nothing here writes to the printer registry.
package discovery
