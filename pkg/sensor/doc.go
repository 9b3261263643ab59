// Package sensor defines sensor identifiers, static sensor descriptors and
// the readings a sensor produces.
//
// Identifiers follow the platform sensor type table. The constants, their
// names, payload field lists and required permissions are generated from
// docs/sensors.yaml by cmd/sensor-gen; see catalog_gen.go.
//
// # Readings
//
// A Reading carries a timestamp and a set of named numeric fields. The field
// names are fixed per sensor: the barometer reports "pressure", pedometer
// detection reports "scalar", the pedometer reports "steps" and so on.
// Readings are treated as immutable once handed to a subscriber; use Clone
// when a modified copy is needed.
package sensor
