package types

// Language is a translation target supported by the Sarvam models
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var Languages = []Language{
	{Code: "bn-IN", Name: "Bengali"},
	{Code: "gu-IN", Name: "Gujarati"},
	{Code: "hi-IN", Name: "Hindi"},
	{Code: "kn-IN", Name: "Kannada"},
	{Code: "ml-IN", Name: "Malayalam"},
	{Code: "mr-IN", Name: "Marathi"},
	{Code: "od-IN", Name: "Odia"},
	{Code: "pa-IN", Name: "Punjabi"},
	{Code: "ta-IN", Name: "Tamil"},
	{Code: "te-IN", Name: "Telugu"},
}

// LookupLanguage returns the language for a code such as "hi-IN"
func LookupLanguage(code string) (Language, bool) {
	for _, l := range Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}
