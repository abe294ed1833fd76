package cms

import "time"

// Role ids fixed by the CMS configuration.
const (
	RoleAuthenticated       = 1
	RoleCustomer            = 4
	RoleInstitutionalClient = 10
	RolePropTrader          = 13
)

// RegisterRequest creates the base account record.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Confirmed bool   `json:"confirmed"`
	Blocked   bool   `json:"blocked"`
	Role      int    `json:"role"`
}

// AuthUser is the user object returned by the auth endpoints.
type AuthUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse is the register/login response: the bearer token for the
// rest of the pipeline plus the created user.
type AuthResponse struct {
	JWT  string   `json:"jwt"`
	User AuthUser `json:"user"`
}

// CustomerProfile is the customer-profiles payload.
type CustomerProfile struct {
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone"`
	Country      string    `json:"country,omitempty"`
	WalletPIN    int       `json:"wallet_pin"`
	User         int       `json:"users_permissions_user"`
	WalletStatus string    `json:"wallet_status"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// RetailTraderProfile is the retail-traders payload.
type RetailTraderProfile struct {
	User               int     `json:"users_permissions_user"`
	Status             string  `json:"status"`
	FullName           string  `json:"fullName,omitempty"`
	Phone              string  `json:"phone,omitempty"`
	Country            string  `json:"country,omitempty"`
	WalletPIN          int     `json:"wallet_pin,omitempty"`
	TradingLevel       string  `json:"tradingLevel"`
	AccountType        string  `json:"accountType"`
	TradingSince       string  `json:"tradingSince,omitempty"`
	LeverageLimit      int     `json:"leverageLimit"`
	FeeDiscountTier    string  `json:"feeDiscountTier"`
	MonthlyTradingGoal float64 `json:"monthlyTradingGoal"`
	Notes              string  `json:"notes,omitempty"`
	AgreedToTerms      bool    `json:"agreedToTerms"`
}

// ContactPerson is a nested contact block on institutional records.
type ContactPerson struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Address is a nested postal address block.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// InstitutionalClient is the institutional-clients payload. Nested blocks
// are typed here and serialized to the string fields the CMS schema
// expects just before transmission.
type InstitutionalClient struct {
	User                       int     `json:"users_permissions_user"`
	Status                     string  `json:"status"`
	CompanyName                string  `json:"companyName"`
	LegalEntityType            string  `json:"legalEntityType"`
	BusinessRegistrationNumber string  `json:"businessRegistrationNumber"`
	CountryOfIncorporation     string  `json:"countryOfIncorporation"`
	TaxIdentificationNumber    string  `json:"taxIdentificationNumber,omitempty"`
	PlatformType               string  `json:"platformType"`
	PrimaryContactPerson       string  `json:"primaryContactPerson"`
	BillingAddress             string  `json:"billingAddress"`
	OperationalAddress         string  `json:"operationalAddress"`
	KYCVerified                bool    `json:"kycVerified"`
	AMLChecked                 bool    `json:"amlChecked"`
	ServiceAgreementSigned     bool    `json:"serviceAgreementSigned"`
	APIAccess                  bool    `json:"apiAccess"`
	SupportLevel               string  `json:"supportLevel"`
	TradingVolume              float64 `json:"tradingVolume"`
	CustomFeePlan              string  `json:"customFeePlan,omitempty"`
	LegalDocuments             string  `json:"legalDocuments,omitempty"`
	RiskProfile                string  `json:"riskProfile,omitempty"`
	TotalAssets                float64 `json:"totalAssets"`
	AnnualRevenue              float64 `json:"annualRevenue"`
	PublishedAt                string  `json:"publishedAt"`
}

// PropTraderProfile is the prop-traders payload created after a verified
// challenge payment.
type PropTraderProfile struct {
	User               int     `json:"users_permissions_user"`
	Status             string  `json:"status"`
	ChallengeType      string  `json:"challenge_type"`
	AccountSize        float64 `json:"account_size"`
	ProfitTarget       float64 `json:"profit_target"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	DailyDrawdownLimit float64 `json:"dailyDrawdownLimit"`
	CurrentBalance     float64 `json:"current_balance"`
	ProfitLoss         float64 `json:"profit_loss"`
	ChallengeStartDate string  `json:"challenge_start_date"`
	AgreedToTerms      bool    `json:"agreedToTerms"`
}

// Wallet is the wallets payload.
type Wallet struct {
	Balance             float64 `json:"balance"`
	Currency            string  `json:"currency"`
	IsActive            bool    `json:"isActive"`
	WalletID            string  `json:"walletId"`
	WalletType          string  `json:"wallet_type"`
	DailyLimit          float64 `json:"dailyLimit"`
	MonthlyLimit        float64 `json:"monthlyLimit"`
	RetailTrader        int     `json:"retail_trader,omitempty"`
	InstitutionalClient int     `json:"institutional_client,omitempty"`
}

// UploadRequest attaches a binary asset to a record field.
type UploadRequest struct {
	Ref         string
	RefID       int
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// dataEnvelope wraps collection payloads the way the CMS expects.
type dataEnvelope struct {
	Data interface{} `json:"data"`
}

// record is the collection response shape; only the id is threaded onward.
type record struct {
	Data struct {
		ID int `json:"id"`
	} `json:"data"`
}

// apiError is the CMS error envelope.
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
