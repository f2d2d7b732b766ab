// Package chat maintains the Twitch IRC connection the relay listens on.
//
// A Session owns one connection: it logs in with PASS/NICK, requests the tags and
// commands capabilities so role badges arrive with every message, joins the channel,
// and then runs a single read loop. The loop answers server PINGs, hands PRIVMSG lines
// for the channel to a Handler, and closes the connection when any liveness rule trips:
//
//   - no server PING for KeepaliveTimeout
//   - no data at all for DataTimeout
//   - our own PING probe, sent every ProbeInterval, fails to write
//
// A server RECONNECT or a login NOTICE also ends the session. Client wraps Session with
// dialing, token lookup and state reporting; restarts are left to package supervise.
//
// Inbound lines are decoded with go-twitch-irc's ParseMessage. The client side of that
// library is not used because the relay needs to own the liveness rules.
package chat
