// Package library talks to the image library server Courier delivers uploads
// to. An upload is a three-step exchange: request a destination slot, transfer
// the payload bytes, then register the asset. The package also exposes the
// health endpoint used by connectivity probing.
//
// The Client keeps two HTTP clients: metadata calls run under the short
// request timeout while payload transfers get the longer upload timeout, so a
// slow transfer never tightens the budget for the JSON exchanges around it.
package library
