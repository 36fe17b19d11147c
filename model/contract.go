package model

import (
	"time"
)

// RentalContract represents the single contract attached to a rental
// application. Contracts are never deleted; cancellation is a status.
type RentalContract struct {
	ID                string           `json:"id"`
	ApplicationID     string           `json:"application_id"`
	Agency            string           `json:"agency"`
	Status            string           `json:"status"`
	Content           ContractContent  `json:"contract_content"`
	Version           int              `json:"version"`
	Notes             string           `json:"notes,omitempty"`
	Details           *ContractDetails `json:"details,omitempty"`
	ApprovedBy        string           `json:"approved_by,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ApprovedAt        *time.Time       `json:"approved_at,omitempty"`
	SentToSignatureAt *time.Time       `json:"sent_to_signature_at,omitempty"`
}

// ContractClause is a numbered unit of legal text belonging to a
// contract, assigned to exactly one canvas section.
type ContractClause struct {
	ID            string    `json:"id"`
	ContractID    string    `json:"contract_id"`
	ClauseNumber  string    `json:"clause_number"`
	ClauseTitle   string    `json:"clause_title"`
	ClauseContent string    `json:"clause_content"`
	CanvasSection string    `json:"canvas_section"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
}

// Section is one named slot of the contract canvas.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContractContent is the fixed five-section projection of a contract.
type ContractContent struct {
	Header      Section `json:"header"`
	Conditions  Section `json:"conditions"`
	Obligations Section `json:"obligations"`
	Termination Section `json:"termination"`
	Signatures  Section `json:"signatures"`
}

// Contract status constants
const (
	StatusDraft           = "draft"
	StatusApproved        = "approved"
	StatusSentToSignature = "sent_to_signature"
	StatusPartiallySigned = "partially_signed"
	StatusFullySigned     = "fully_signed"
	StatusCancelled       = "cancelled"
)

// Canvas section keys
const (
	SectionHeader      = "header"
	SectionConditions  = "conditions"
	SectionObligations = "obligations"
	SectionTermination = "termination"
	SectionSignatures  = "signatures"
)

// SectionKeys lists the canvas sections in display order.
var SectionKeys = []string{
	SectionHeader,
	SectionConditions,
	SectionObligations,
	SectionTermination,
	SectionSignatures,
}

// ValidSection reports whether key names one of the five canvas sections.
func ValidSection(key string) bool {
	for _, k := range SectionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// transitions is the forward-only status graph. fully_signed is
// reachable directly from sent_to_signature because signature
// providers may report both signers in a single callback.
var transitions = map[string][]string{
	StatusDraft:           {StatusApproved, StatusCancelled},
	StatusApproved:        {StatusSentToSignature, StatusCancelled},
	StatusSentToSignature: {StatusPartiallySigned, StatusFullySigned, StatusCancelled},
	StatusPartiallySigned: {StatusFullySigned, StatusCancelled},
	StatusFullySigned:     {},
	StatusCancelled:       {},
}

// ValidStatus reports whether s is a known contract status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a contract may move from one status to
// another. A same-status write is not a transition.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// Section returns a pointer to the named section, or nil for an
// unknown key.
func (c *ContractContent) Section(key string) *Section {
	switch key {
	case SectionHeader:
		return &c.Header
	case SectionConditions:
		return &c.Conditions
	case SectionObligations:
		return &c.Obligations
	case SectionTermination:
		return &c.Termination
	case SectionSignatures:
		return &c.Signatures
	}
	return nil
}

// DefaultSectionTitles are the titles used when a contract is created
// or when a section has no clauses.
var DefaultSectionTitles = map[string]string{
	SectionHeader:      "Comparecencia",
	SectionConditions:  "Condiciones del Arrendamiento",
	SectionObligations: "Obligaciones de las Partes",
	SectionTermination: "Terminación del Contrato",
	SectionSignatures:  "Firmas",
}

// DefaultContent returns the template a new contract starts from.
func DefaultContent() ContractContent {
	return ContractContent{
		Header: Section{
			Title: DefaultSectionTitles[SectionHeader],
			Content: "En la ciudad de Santiago, comparecen el ARRENDADOR y el ARRENDATARIO, " +
				"ambos mayores de edad, quienes acuerdan celebrar el presente contrato de " +
				"arrendamiento sobre el inmueble individualizado en la solicitud respectiva.",
		},
		Conditions: Section{
			Title: DefaultSectionTitles[SectionConditions],
			Content: "La renta mensual, el plazo de vigencia y la garantía se regirán por lo " +
				"acordado entre las partes. La renta se pagará por mensualidades anticipadas " +
				"dentro de los primeros cinco días de cada mes.",
		},
		Obligations: Section{
			Title: DefaultSectionTitles[SectionObligations],
			Content: "El ARRENDATARIO se obliga a destinar el inmueble exclusivamente a la " +
				"habitación, a mantenerlo en buen estado de conservación y a restituirlo al " +
				"término del contrato. El ARRENDADOR se obliga a garantizar el uso pacífico " +
				"del inmueble.",
		},
		Termination: Section{
			Title: DefaultSectionTitles[SectionTermination],
			Content: "El contrato terminará por el vencimiento del plazo, por resolución ante " +
				"el incumplimiento de cualquiera de las partes, o por las demás causales " +
				"legales de terminación del arrendamiento.",
		},
		Signatures: Section{
			Title: DefaultSectionTitles[SectionSignatures],
			Content: "Firmado en dos ejemplares de un mismo tenor y a un solo efecto, quedando " +
				"uno en poder de cada parte.",
		},
	}
}

// ContractDetails carries the broker metadata attached to a contract
// before it is approved.
type ContractDetails struct {
	BrokerName string `json:"broker_name"`
	PaymentDay int    `json:"payment_day,omitempty"`
}
