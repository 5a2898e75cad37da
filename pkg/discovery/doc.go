// Package discovery implements mDNS/DNS-SD advertising and browsing
// for rawsock servers.
//
// Servers advertise under the service type "_rawsock._tcp" with TXT
// records describing the instance: its identifier, whether TLS client
// certificates are required, and an optional free-form name. Clients
// browse for instances on the local network and receive resolved
// addresses over a channel.
//
// Discovery is optional. Servers work fine with static addressing;
// this package exists so CLI tooling and LAN deployments can find
// servers without configuration.
package discovery
