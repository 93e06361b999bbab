package render

import "github.com/contractflow/contractflow/internal/models"

// builtinTemplates are the templates every deployment ships with. Section
// text references instantiation variables as {{var.name}}.
var builtinTemplates = []*TemplateDefinition{
	{
		ID:          "nda-standard",
		Name:        "Non-Disclosure Agreement",
		Type:        models.TemplateNDA,
		Description: "Mutual non-disclosure agreement for confidential business discussions.",
		Variables:   []string{"disclosing_party", "receiving_party", "purpose", "term_years", "governing_law"},
		Content: models.ContractContent{
			Sections: []models.Section{
				{
					Title: "Parties",
					Text: "This Non-Disclosure Agreement is entered into between " +
						"{{var.disclosing_party}} (the \"Disclosing Party\") and " +
						"{{var.receiving_party}} (the \"Receiving Party\").",
				},
				{
					Title: "Purpose",
					Text: "The parties wish to explore {{var.purpose}} and in connection " +
						"with this purpose may disclose confidential information to each other.",
				},
				{
					Title: "Confidential Information",
					Text: "Confidential Information means any information disclosed by either party, " +
						"whether orally, in writing or in any other form, that is designated as " +
						"confidential or that reasonably should be understood to be confidential.",
					Subsections: []models.Subsection{
						{
							Title: "Exclusions",
							Text: "Information that is publicly known, independently developed, or " +
								"rightfully received from a third party is not Confidential Information.",
						},
					},
				},
				{
					Title: "Term",
					Text: "The obligations under this Agreement remain in force for " +
						"{{var.term_years}} years from the date of disclosure.",
				},
				{
					Title: "Governing Law",
					Text:  "This Agreement is governed by the laws of {{var.governing_law}}.",
				},
			},
		},
	},
	{
		ID:          "freelance-standard",
		Name:        "Freelance Service Agreement",
		Type:        models.TemplateFreelance,
		Description: "Engagement of an independent contractor for a defined scope of work.",
		Variables:   []string{"client_name", "contractor_name", "scope", "rate", "payment_terms"},
		Content: models.ContractContent{
			Sections: []models.Section{
				{
					Title: "Engagement",
					Text: "{{var.client_name}} (the \"Client\") engages {{var.contractor_name}} " +
						"(the \"Contractor\") as an independent contractor.",
				},
				{
					Title: "Scope of Work",
					Text:  "The Contractor will perform the following services: {{var.scope}}.",
				},
				{
					Title: "Compensation",
					Text:  "The Client will pay the Contractor {{var.rate}}.",
					Subsections: []models.Subsection{
						{
							Title: "Payment Terms",
							Text:  "Invoices are payable under the following terms: {{var.payment_terms}}.",
						},
					},
				},
				{
					Title: "Intellectual Property",
					Text: "Work product created under this Agreement is assigned to the Client " +
						"upon full payment.",
				},
				{
					Title: "Independent Contractor Status",
					Text: "Nothing in this Agreement creates an employment relationship between " +
						"the parties.",
				},
			},
		},
	},
	{
		ID:          "collaboration-standard",
		Name:        "Collaboration Agreement",
		Type:        models.TemplateCollaboration,
		Description: "Joint project collaboration between two organizations.",
		Variables:   []string{"party_a", "party_b", "project_name", "contribution_a", "contribution_b"},
		Content: models.ContractContent{
			Sections: []models.Section{
				{
					Title: "Collaboration",
					Text: "{{var.party_a}} and {{var.party_b}} agree to collaborate on " +
						"{{var.project_name}} (the \"Project\").",
				},
				{
					Title: "Contributions",
					Text:  "Each party contributes resources to the Project as set out below.",
					Subsections: []models.Subsection{
						{Title: "Contribution of {{var.party_a}}", Text: "{{var.contribution_a}}"},
						{Title: "Contribution of {{var.party_b}}", Text: "{{var.contribution_b}}"},
					},
				},
				{
					Title: "Joint Results",
					Text: "Results produced jointly under the Project are owned jointly; each party " +
						"may use them for its own business purposes.",
				},
				{
					Title: "Termination",
					Text: "Either party may terminate the collaboration with thirty days written " +
						"notice.",
				},
			},
		},
	},
}
