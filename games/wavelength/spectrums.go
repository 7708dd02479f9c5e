/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package wavelength

// Spectrum is a card with two opposite ends. 0 is fully Left, 100 fully Right.
type Spectrum struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

var defaultSpectrums = []Spectrum{
	{"Cold", "Hot"},
	{"Useless", "Useful"},
	{"Overrated", "Underrated"},
	{"Boring", "Exciting"},
	{"Cheap", "Expensive"},
	{"Easy to spell", "Hard to spell"},
	{"Fantasy", "Science fiction"},
	{"Smells bad", "Smells good"},
	{"Villain", "Hero"},
	{"Forgettable", "Memorable"},
	{"Round", "Pointy"},
	{"Sad song", "Happy song"},
	{"Tiny", "Huge"},
	{"Normal pet", "Weird pet"},
	{"Breakfast food", "Dinner food"},
	{"Guilty pleasure", "Openly loved"},
}
