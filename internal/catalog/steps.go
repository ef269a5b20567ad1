package catalog

import "github.com/genesis/genesis/internal/models"

// StepPrompt is the coaching prompt and the fallback clarification for a step
type StepPrompt struct {
	Question      string
	Clarification string
}

var stepPrompts = map[models.Step]StepPrompt{
	models.StepVision: {
		Question:      "Quelle est votre vision ? Où voyez-vous votre entreprise dans cinq ans ?",
		Clarification: "Pouvez-vous préciser ce que vous souhaitez accomplir à long terme et pour qui ?",
	},
	models.StepMission: {
		Question:      "Quelle est votre mission ? Que faites-vous chaque jour pour vos clients ?",
		Clarification: "Décrivez concrètement ce que votre entreprise apporte au quotidien.",
	},
	models.StepClientele: {
		Question:      "Qui sont vos clients ? Décrivez votre clientèle cible.",
		Clarification: "Pouvez-vous préciser l'âge, le lieu ou les besoins de vos clients ?",
	},
	models.StepDifferentiation: {
		Question:      "Qu'est-ce qui vous distingue de vos concurrents ?",
		Clarification: "Citez un ou deux avantages concrets que vos concurrents n'offrent pas.",
	},
	models.StepOffer: {
		Question:      "Quelle est votre offre ? Listez vos produits ou services principaux.",
		Clarification: "Pouvez-vous détailler vos principaux services et, si possible, leurs prix ?",
	},
	models.StepSynthesis: {
		Question:      "Merci ! Votre brief est complet, nous préparons votre site.",
		Clarification: "Votre brief est déjà complet.",
	},
}

// Prompt returns the coaching prompt for a step
func Prompt(step models.Step) StepPrompt {
	return stepPrompts[step]
}

var stepExamples = map[string]map[models.Step][]string{
	SectorRestaurant: {
		models.StepVision:          {"Devenir le maquis de référence de la cuisine ivoirienne moderne", "Faire découvrir la cuisine locale aux jeunes actifs"},
		models.StepMission:         {"Servir des plats locaux frais et rapides à prix juste", "Offrir un lieu convivial pour les déjeuners d'affaires"},
		models.StepClientele:       {"Jeunes actifs du quartier, 25-40 ans", "Familles le week-end et entreprises pour le traiteur"},
		models.StepDifferentiation: {"Produits du marché livrés chaque matin", "Service en moins de 15 minutes le midi"},
		models.StepOffer:           {"Déjeuner, brunch du dimanche, service traiteur", "Formules midi à 3 500 FCFA"},
	},
	SectorTech: {
		models.StepVision:          {"Rendre la gestion accessible à toutes les PME africaines", "Digitaliser les paiements informels"},
		models.StepMission:         {"Fournir un logiciel simple utilisable sur mobile", "Automatiser la comptabilité des commerçants"},
		models.StepClientele:       {"PME de 5 à 50 employés", "Commerçants équipés d'un smartphone"},
		models.StepDifferentiation: {"Fonctionne hors ligne", "Support en langues locales"},
		models.StepOffer:           {"Abonnement mensuel, formation, intégration mobile money"},
	},
}

var genericExamples = map[models.Step][]string{
	models.StepVision:          {"Devenir la référence de mon secteur dans ma ville", "Créer des emplois durables dans ma communauté"},
	models.StepMission:         {"Offrir un service fiable et accessible", "Accompagner mes clients avec proximité"},
	models.StepClientele:       {"Particuliers du quartier", "Petites entreprises locales"},
	models.StepDifferentiation: {"Qualité constante et prix transparents", "Disponibilité et réactivité"},
	models.StepOffer:           {"Trois services principaux avec des formules adaptées"},
}

// StepExamples returns sector-specific example answers for a step
func StepExamples(sector string, step models.Step) []string {
	if bySector, ok := stepExamples[NormalizeSector(sector)]; ok {
		if ex, ok := bySector[step]; ok {
			return ex
		}
	}
	return genericExamples[step]
}
