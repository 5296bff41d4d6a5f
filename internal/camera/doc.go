// Package camera tracks the printer's webcams and proxies image data.
//
// The Manager mirrors Moonraker's webcam list, resolving relative
// snapshot and stream URLs against the Moonraker HTTP endpoint, and
// fetches snapshot frames and gcode thumbnails on behalf of the REST
// API so browser clients never need direct access to the printer
// network.
package camera
