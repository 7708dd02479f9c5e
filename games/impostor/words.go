/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

// Category is a themed set of secret words. The impostor only ever learns
// the category name.
type Category struct {
	Name  string
	Words []string
}

var defaultCategories = []Category{
	{Name: "Places", Words: []string{
		"Airport", "Beach", "Casino", "Cathedral", "Hospital", "Library",
		"Museum", "Prison", "Space Station", "Submarine", "Supermarket", "Zoo",
	}},
	{Name: "Food", Words: []string{
		"Burrito", "Cheesecake", "Croissant", "Dumpling", "Lasagna", "Pancake",
		"Popcorn", "Ramen", "Sushi", "Taco", "Waffle", "Watermelon",
	}},
	{Name: "Animals", Words: []string{
		"Camel", "Dolphin", "Flamingo", "Giraffe", "Hedgehog", "Kangaroo",
		"Octopus", "Owl", "Penguin", "Sloth", "Squirrel", "Tiger",
	}},
	{Name: "Jobs", Words: []string{
		"Astronaut", "Baker", "Dentist", "Detective", "Firefighter", "Lifeguard",
		"Magician", "Pilot", "Plumber", "Referee", "Surgeon", "Teacher",
	}},
	{Name: "Objects", Words: []string{
		"Umbrella", "Candle", "Compass", "Hammock", "Ladder", "Mirror",
		"Padlock", "Parachute", "Scissors", "Telescope", "Toothbrush", "Trumpet",
	}},
}
