// Package stationcfg owns the station document split.
//
// Ownership boundary:
// - the recognized server fields and the default GUI descriptor
// - the server/GUI/full views derived per instrument
// - the residual document artifact handed to path-only consumers
package stationcfg
