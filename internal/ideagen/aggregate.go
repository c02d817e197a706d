package ideagen

// Aggregate merges the validated idea and the six analyses into one record.
// It is a deterministic field copy with no external calls; it cannot fail at
// runtime because the orchestrator only reaches it once all inputs exist.
func Aggregate(
	idea ValidatedIdea,
	basic BasicInfoAnalysis,
	tech TechnologiesAnalysis,
	business BusinessContextAnalysis,
	regulations RegulationsAnalysis,
	differentiators DifferentiatorsAnalysis,
	other OtherDetailsAnalysis,
) AggregatedData {
	return AggregatedData{
		Idea:            idea,
		BasicInfo:       basic,
		Technologies:    tech,
		BusinessContext: business,
		Regulations:     regulations,
		Differentiators: differentiators,
		OtherDetails:    other,
	}
}
