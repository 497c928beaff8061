package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflows and the catalogs templates refer to
			CREATE TABLE workflows (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				file VARCHAR(255) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_title_file ON workflows(title, file);

			CREATE TABLE dockets (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				file VARCHAR(255) NOT NULL
			);

			CREATE TABLE rulesets (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				file VARCHAR(255) NOT NULL
			);
		`,
		2: `
			-- Compiled templates and their tasks
			CREATE TABLE templates (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				output_name VARCHAR(255) NOT NULL DEFAULT '',
				workflow_id BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				docket_id BIGINT REFERENCES dockets(id),
				ruleset_id BIGINT REFERENCES rulesets(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_templates_workflow_id ON templates(workflow_id);

			CREATE TABLE tasks (
				id BIGSERIAL PRIMARY KEY,
				template_id BIGINT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				ordering INT NOT NULL,
				priority INT NOT NULL DEFAULT 0,
				edit_type INT NOT NULL DEFAULT 0,
				batch_step BOOLEAN NOT NULL DEFAULT false,
				type_automatic BOOLEAN NOT NULL DEFAULT false,
				type_export_dms BOOLEAN NOT NULL DEFAULT false,
				type_export_russian BOOLEAN NOT NULL DEFAULT false,
				type_metadata BOOLEAN NOT NULL DEFAULT false,
				type_import_file_upload BOOLEAN NOT NULL DEFAULT false,
				type_images_read BOOLEAN NOT NULL DEFAULT false,
				type_images_write BOOLEAN NOT NULL DEFAULT false,
				type_accept_close BOOLEAN NOT NULL DEFAULT false,
				type_close_verify BOOLEAN NOT NULL DEFAULT false,
				script_name VARCHAR(255) NOT NULL DEFAULT '',
				script_path TEXT NOT NULL DEFAULT '',
				workflow_condition TEXT NOT NULL DEFAULT 'default'
			);

			CREATE INDEX idx_tasks_template_id ON tasks(template_id);
		`,
	}
}
