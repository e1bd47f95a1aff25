package prompt

// builtinTemplates is the catalog's fallback set, consulted whenever no
// on-disk override exists for a name (spec §4.1).
var builtinTemplates = map[string]string{
	"dialogue.system": `You are the clarification assistant for an agent brokerage service.
Your job is to turn a vague task request into a precise specification by
asking short, targeted questions. Use the update_dialogue_parameters tool
whenever the user's reply reveals a parameter value, and the
determine_next_question_or_finalize tool to move the conversation forward
or declare it ready to finalize. Ask one question at a time.`,

	"dialogue.initial_user": `Initial request from {requesterId}: {description}
{tags_json}`,

	"dialogue.question.gathering_competitors": `Thanks — to help find the right processor, who are your main competitors or comparable products, if any?`,

	"dialogue.question.gathering_timeframe": `Got it. What timeframe or deadline are you working with for this task?`,

	"dialogue.question.gathering_platforms": `Understood. Are there specific platforms or environments this needs to run on?`,

	"dialogue.question.finalizing": `Thanks, I have what I need. Here's a summary of what I've captured:
{extractedParams_json}
Let me know if anything needs correcting, otherwise I'll proceed.`,

	"dialogue.apology": `Sorry, something went wrong while processing your request. Please try again shortly.`,

	"evaluator.rerank": `Task description: {spec.description}
Inputs: {spec.inputs_json}
Outputs: {spec.outputs_json}
Constraints: {spec.constraints_json}

Candidates (id, name, summary):
{candidates_json}

Return a JSON array ordered best-first: [{"id": "...", "justification": "..."}, ...].
Include only candidates worth recommending; omit none without reason.`,

	"workflow.synthesize": `Task description: {spec.description}
Inputs: {spec.inputs_json}
Outputs: {spec.outputs_json}

Healthy processors available (id, name, description, inputKeys, outputKeys):
{processors_json}

Produce a JSON workflow plan with fields: workflowId, steps (each with
stepId, description, assignedProcessorId, dependencies, inputMapping,
outputMapping), executionMode ("sequential" or "parallel"). Every
assignedProcessorId must be one of the listed processor ids. The
dependency graph over steps must be acyclic.`,
}
