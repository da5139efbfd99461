package plan

import "github.com/gentoomaniac/sparsebox/pkg/plist"

const (
	SharedContainerDomain    = "SysSharedContainerDomain-"
	ManagedPreferencesDomain = "ManagedPreferencesDomain"

	GestaltGroup     = "systemgroup.com.apple.mobilegestaltcache"
	GestaltCachePath = GestaltGroup + "/Library/Caches/com.apple.MobileGestalt.plist"
	// GestaltDevicePath is where the cache file lives on the device.
	GestaltDevicePath = "/var/containers/Shared/SystemGroup/" + GestaltCachePath

	ProfilesGroup   = "systemgroup.com.apple.configurationprofiles"
	CloudConfigPath = ProfilesGroup + "/Library/ConfigurationProfiles/CloudConfigurationDetails.plist"
	PurpleBuddyPath = "mobile/com.apple.purplebuddy.plist"
)

var skipSetup = []string{
	"WiFi", "Location", "Restore", "SIMSetup", "Android", "AppleID", "IntendedUser", "TOS",
	"Siri", "ScreenTime", "Diagnostics", "SoftwareUpdate", "Passcode", "Biometric", "Payment",
	"Zoom", "DisplayTone", "MessagingActivationUsingPhoneNumber", "HomeButtonSensitivity",
	"CloudStorage", "ScreenSaver", "TapToSetup", "Keyboard", "PreferredLanguage", "SpokenLanguage",
	"WatchMigration", "OnBoarding", "TVProviderSignIn", "TVHomeScreenSync", "Privacy", "TVRoom",
	"iMessageAndFaceTime", "AppStore", "Safety", "Multitasking", "ActionButton", "TermsOfAddress",
	"AccessibilityAppearance", "Welcome", "Appearance", "RestoreCompleted", "UpdateCompleted",
}

// CloudConfigurationDetails returns a cloud configuration that skips every
// setup assistant pane.
func CloudConfigurationDetails() ([]byte, error) {
	panes := make([]plist.Value, len(skipSetup))
	for i, s := range skipSetup {
		panes[i] = plist.NewString(s)
	}
	return plist.Encode(plist.NewDict(map[string]plist.Value{
		"SkipSetup":                    plist.NewArray(panes...),
		"AllowPairing":                 plist.NewBool(true),
		"ConfigurationWasApplied":      plist.NewBool(true),
		"CloudConfigurationUIComplete": plist.NewBool(true),
		"ConfigurationSource":          plist.NewInteger(0),
		"PostSetupProfileWasInstalled": plist.NewBool(true),
		"IsSupervised":                 plist.NewBool(false),
	}), plist.BinaryFormat)
}

// PurpleBuddy returns setup assistant preferences marking setup as done.
func PurpleBuddy() ([]byte, error) {
	return plist.Encode(plist.NewDict(map[string]plist.Value{
		"SetupDone":             plist.NewBool(true),
		"SetupFinishedAllSteps": plist.NewBool(true),
		"UserChoseLanguage":     plist.NewBool(true),
	}), plist.BinaryFormat)
}
