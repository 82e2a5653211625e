package config

// Built-in defaults. The UI strings mirror the portal the verifier was
// written against; override them under [ui] for other deployments.

// DefaultScreenshotPath is where the final-state screenshot lands.
const DefaultScreenshotPath = "jules-scratch/verification/verification.png"

// DefaultConfig returns the built-in default configuration.
func DefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			BaseURL:    "http://localhost:5173",
			SignupPath: "/signup",
			SigninPath: "/signin",
		},
		Student: StudentConfig{
			Name:         "Test Student",
			EmailPattern: "student_{token}@example.com",
			Password:     "password123",
			Uniqueness:   "unix_time",
			RejectReason: "Automated verification",
		},
		Admin: AdminConfig{
			Email:    "admin@example.com",
			Password: "password123",
		},
		UI: UIConfig{
			FullNameLabel:       "Full Name",
			EmailLabel:          "Email Address",
			PasswordLabel:       "Password",
			SignUpButton:        "Sign Up",
			SignInButton:        "Sign In",
			SignOutButton:       "Sign Out",
			ApproveButton:       "Approve",
			RejectButton:        "Reject",
			RegistrationSuccess: "Registration Successful!",
			AdminDashboard:      "Student Approval",
			SignedOut:           "Welcome Back",
			ApprovedStatus:      "Application Approved!",
			PendingStatus:       "Application Pending",
			RejectedStatus:      "Application Rejected",
		},
		Browser: BrowserConfig{
			Driver:                "chromedp",
			Headless:              true,
			Bin:                   "",
			ExtraArgs:             "",
			NoSandbox:             false,
			WindowWidth:           1280,
			WindowHeight:          800,
			TimeoutSecs:           5,
			NavigationTimeoutSecs: 30,
		},
		Artifacts: ArtifactsConfig{
			ScreenshotPath:   DefaultScreenshotPath,
			FailureDir:       ".flowverify/failures",
			CaptureOnFailure: true,
			LogDir:           ".flowverify/logs",
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: ".flowverify/history.db",
		},
		Notify: NotifyConfig{
			On:          "failure",
			TimeoutSecs: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
