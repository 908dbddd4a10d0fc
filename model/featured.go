package model

// FeaturedStations is the built-in station list shown on first run,
// before the user has added anything of their own.
var FeaturedStations = []Station{
	{
		URL:        "https://ice1.somafm.com/groovesalad-128-mp3",
		Name:       "SomaFM Groove Salad",
		Language:   "en",
		IsFeatured: true,
	},
	{
		URL:        "https://ice2.somafm.com/dronezone-128-mp3",
		Name:       "SomaFM Drone Zone",
		Language:   "en",
		IsFeatured: true,
	},
	{
		URL:        "https://stream.live.vc.bbcmedia.co.uk/bbc_world_service",
		Name:       "BBC World Service",
		Language:   "en",
		IsFeatured: true,
	},
	{
		URL:        "https://icecast.radiofrance.fr/fip-midfi.mp3",
		Name:       "FIP",
		Language:   "fr",
		IsFeatured: true,
	},
	{
		URL:        "https://as-hls-ww-live.akamaized.net/pool_904/live/ww/bbc_radio_fourfm/bbc_radio_fourfm.isml/bbc_radio_fourfm-audio%3d96000.norewind.m3u8",
		Name:       "BBC Radio 4",
		Language:   "en",
		IsFeatured: true,
	},
	{
		URL:        "https://lhttp.qingting.fm/live/386/64k.mp3",
		Name:       "CNR Music Radio",
		Language:   "zh",
		IsFeatured: true,
	},
	{
		URL:        "https://nhkradioakr2-i.akamaihd.net/hls/live/511929/1-r2/1-r2-01.m3u8",
		Name:       "NHK Radio 2",
		Language:   "ja",
		IsFeatured: true,
	},
	{
		URL:        "https://icecast.omroep.nl/radio1-bb-mp3",
		Name:       "NPO Radio 1",
		Language:   "nl",
		IsFeatured: true,
	},
}
