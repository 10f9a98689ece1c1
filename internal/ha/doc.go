// Package ha is a Home Assistant websocket API client covering the calls the
// bridge makes: picnic.add_product and assist_satellite.announce. Rejected
// calls are folded into Result values; transport failures trigger a
// reconnect with a bounded backoff ladder and a single retry.
package ha
