// Package discovery implements mDNS/DNS-SD advertisement of sensor bridges.
//
// A running bridge advertises the service type _sensorbridge._tcp in the
// local domain. The instance name is user-chosen (default: the host name);
// the port is the bridge's health endpoint.
//
// # TXT Records
//
//   - sensors: comma-separated sensor names exported by the bridge
//   - prefix: topic prefix the readings are published under
//   - broker: broker URL the bridge publishes to
//   - ver: bridge version (optional)
//
// Consumers browse for the service type and subscribe to
// <prefix>/<sensor-name> on the advertised broker.
package discovery
